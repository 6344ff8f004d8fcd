package notes

import (
	"sort"
	"strings"

	"github.com/ehr/uropathway/internal/domain/scheduling"
)

// SurgicalPathway is the pathway whose transfer notes anchor reschedule notes.
const SurgicalPathway = "Surgery Pathway"

// Reconcile orders a patient's notes for display. Surgery pathway transfers
// become parents, newest first. Each parent is followed by the surgery
// reschedule notes written between it and the next newer parent, newest
// first and indented one level. All other notes follow in input order, then
// any reschedules that fell before the oldest parent.
// Appointment-type-change notices and auto-generated transfer duplicates of
// investigation requests are dropped.
func Reconcile(notes []*ClinicalNote) []TimelineEntry {
	var parents, children, rest []*ClinicalNote
	for _, n := range notes {
		switch {
		case isNoise(n):
		case isSurgicalParent(n):
			parents = append(parents, n)
		case isSurgeryReschedule(n):
			children = append(children, n)
		default:
			rest = append(rest, n)
		}
	}

	sort.SliceStable(parents, func(i, j int) bool {
		return parents[i].CreatedAt.After(parents[j].CreatedAt)
	})
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].CreatedAt.After(children[j].CreatedAt)
	})

	out := make([]TimelineEntry, 0, len(parents)+len(children)+len(rest))
	claimed := make(map[*ClinicalNote]bool, len(children))
	for i, p := range parents {
		out = append(out, TimelineEntry{Note: p})
		for _, c := range children {
			if claimed[c] || c.CreatedAt.Before(p.CreatedAt) {
				continue
			}
			// The next newer parent closes the window.
			if i > 0 && !c.CreatedAt.Before(parents[i-1].CreatedAt) {
				continue
			}
			claimed[c] = true
			out = append(out, TimelineEntry{Note: c, IndentLevel: 1})
		}
	}

	for _, n := range rest {
		out = append(out, TimelineEntry{Note: n})
	}
	for _, n := range notes {
		if isSurgeryReschedule(n) && !isNoise(n) && !claimed[n] {
			out = append(out, TimelineEntry{Note: n})
		}
	}
	return out
}

func isNoise(n *ClinicalNote) bool {
	switch c := n.Content.(type) {
	case AppointmentTypeChangePayload:
		return true
	case PathwayTransferPayload:
		return n.Type == TypePathwayTransfer && c.AutoGenerated
	case InvestigationRequestPayload:
		return n.Type == TypePathwayTransfer && c.AutoGenerated
	}
	return false
}

func isSurgicalParent(n *ClinicalNote) bool {
	p, ok := n.Content.(PathwayTransferPayload)
	return ok && strings.EqualFold(p.To, SurgicalPathway)
}

func isSurgeryReschedule(n *ClinicalNote) bool {
	r, ok := n.Content.(ReschedulePayload)
	return ok && strings.EqualFold(r.AppointmentType, string(scheduling.TypeSurgery))
}
