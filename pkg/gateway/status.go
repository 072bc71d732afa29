package gateway

type Status string

const (
	StatusDraft              Status = "draft"
	StatusBriefCompleted     Status = "brief_completed"
	StatusResearchCompleted  Status = "research_completed"
	StatusOfferGenerated     Status = "offer_generated"
	StatusMaterialsGenerated Status = "materials_generated"
	StatusCompleted          Status = "completed"
)

var Statuses = []Status{
	StatusDraft,
	StatusBriefCompleted,
	StatusResearchCompleted,
	StatusOfferGenerated,
	StatusMaterialsGenerated,
	StatusCompleted,
}

var statusInfo = map[Status]struct {
	label   string
	percent int
}{
	StatusDraft:              {"Draft", 10},
	StatusBriefCompleted:     {"Brief completed", 30},
	StatusResearchCompleted:  {"Research completed", 50},
	StatusOfferGenerated:     {"Offer generated", 70},
	StatusMaterialsGenerated: {"Materials generated", 90},
	StatusCompleted:          {"Completed", 100},
}

func (s Status) Valid() bool {
	_, ok := statusInfo[s]
	return ok
}

// Label is the display name; unknown statuses are shown verbatim.
func (s Status) Label() string {
	if info, ok := statusInfo[s]; ok {
		return info.label
	}
	return string(s)
}

// Percent is the nominal completion shown on the project list, 0 for unknown statuses.
func (s Status) Percent() int {
	return statusInfo[s].percent
}
