package pathway

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("care_pathway", func(fl validator.FieldLevel) bool {
		return patient.CarePathway(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("time_of_day", func(fl validator.FieldLevel) bool {
		return scheduling.ValidTimeOfDay(fl.Field().String())
	})
}

var validationMessages = map[string]string{
	"required":     "is required",
	"notblank":     "is required",
	"oneof":        "must be one of: %s",
	"datetime":     "must be a date in YYYY-MM-DD form",
	"care_pathway": "is not a recognised care pathway",
	"time_of_day":  "must be a time in HH:MM form",
}

// formatValidationErrors renders validator errors as "field message" pairs.
func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := validationMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if fe.Tag() == "oneof" {
			msg = strings.Replace(msg, "%s", strings.Join(strings.Fields(fe.Param()), ", "), 1)
		}
		msgs = append(msgs, fieldPath(fe)+" "+msg)
	}
	return strings.Join(msgs, ", ")
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Validate checks req against the rules for its target pathway. today is
// compared by calendar date only.
func Validate(req *Request, today time.Time) error {
	if req.TargetPathway == "" {
		return validationError("target_pathway is required")
	}
	if err := validate.Struct(req); err != nil {
		return validationError("%s", formatValidationErrors(err))
	}

	switch req.TargetPathway {
	case patient.PathwayMedication:
		meds, err := completeMedications(req.Medications)
		if err != nil {
			return err
		}
		req.Medications = meds
		return nil
	case patient.PathwaySurgery:
		if err := requireReasonAndRationale(req); err != nil {
			return err
		}
		if req.SurgeryDate == "" || req.SurgeryTime == "" {
			return validationError("surgery_date and surgery_time are required")
		}
		date, err := scheduling.ParseDate(req.SurgeryDate)
		if err != nil {
			return validationError("%v", err)
		}
		if date.Before(scheduling.DateOnly(today)) {
			return validationError("surgery_date %s is in the past", req.SurgeryDate)
		}
		return nil
	default:
		return requireReasonAndRationale(req)
	}
}

// completeMedications trims every entry and drops rows left entirely blank.
// A partially filled row is rejected, and at least one entry must remain.
// Errors name the row by its position in the request.
func completeMedications(in []Medication) ([]Medication, error) {
	out := make([]Medication, 0, len(in))
	for i, m := range in {
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		m.Duration = strings.TrimSpace(m.Duration)
		if m.Name == "" && m.Dosage == "" && m.Frequency == "" {
			continue
		}
		if err := validate.Struct(m); err != nil {
			return nil, validationError("medications[%d]: %s", i, formatValidationErrors(err))
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, validationError("at least one medication is required")
	}
	return out, nil
}

func requireReasonAndRationale(req *Request) error {
	var missing []string
	if strings.TrimSpace(req.Reason) == "" {
		missing = append(missing, "reason")
	}
	if strings.TrimSpace(req.ClinicalRationale) == "" {
		missing = append(missing, "clinical_rationale")
	}
	if len(missing) > 0 {
		return validationError("%s required for %s", strings.Join(missing, " and "), req.TargetPathway)
	}
	return nil
}

// needsDischargeSummary reports whether target enters the discharge-summary
// sub-flow.
func needsDischargeSummary(target patient.CarePathway) bool {
	return target == patient.PathwayDischarge || target == patient.PathwayPostOpTransfer
}

// acceptsFollowUp reports whether target books follow-ups from the request's
// follow-up fields. Only these pathways let the patient store auto-book.
func acceptsFollowUp(target patient.CarePathway) bool {
	switch target {
	case patient.PathwayActiveMonitoring, patient.PathwayActiveSurveillance, patient.PathwayPostOpFollowup:
		return true
	}
	return false
}
