package models

import "encoding/json"

// EventType names one kind of progress event. Consumers must ignore types
// they do not recognize.
type EventType string

const (
	EventStatus   EventType = "status"
	EventResponse EventType = "response"
	EventFinal    EventType = "final"
	EventError    EventType = "error"
)

// PartialResult is attached to a terminal error event when advisor data was
// gathered but synthesis failed.
type PartialResult struct {
	CEOResponse       *AdvisorResponse       `json:"ceoResponse,omitempty"`
	Consultations     []Consultation         `json:"consultations"`
	ExecutiveStatuses map[Role]AdvisorStatus `json:"executiveStatuses"`
	CostReport        *CostReport            `json:"costReport,omitempty"`
}

// Event is one entry of the consultation progress stream. Only the fields
// relevant to Type are serialized.
type Event struct {
	Type              EventType              `json:"type"`
	ConsultationID    string                 `json:"consultationId,omitempty"`
	Executive         Role                   `json:"executive,omitempty"`
	Response          *AdvisorResponse       `json:"response,omitempty"`
	ExecutiveStatuses map[Role]AdvisorStatus `json:"executiveStatuses,omitempty"`
	CEOResponse       *AdvisorResponse       `json:"ceoResponse,omitempty"`
	Consultations     []Consultation         `json:"consultations,omitempty"`
	Synthesis         *IntegratedResponse    `json:"synthesis,omitempty"`
	CostReport        *CostReport            `json:"costReport,omitempty"`
	Warnings          []string               `json:"warnings,omitempty"`
	Message           string                 `json:"message,omitempty"`
	Violations        []string               `json:"violations,omitempty"`
	Partial           *PartialResult         `json:"partial,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventFinal || e.Type == EventError
}

// MarshalJSON emits the per-type payload shape, so that e.g. a final event
// always carries a consultations array even when it is empty.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStatus:
		return json.Marshal(struct {
			Type              EventType              `json:"type"`
			ConsultationID    string                 `json:"consultationId,omitempty"`
			ExecutiveStatuses map[Role]AdvisorStatus `json:"executiveStatuses"`
		}{e.Type, e.ConsultationID, e.ExecutiveStatuses})

	case EventResponse:
		return json.Marshal(struct {
			Type              EventType              `json:"type"`
			ConsultationID    string                 `json:"consultationId,omitempty"`
			Executive         Role                   `json:"executive"`
			Response          *AdvisorResponse       `json:"response"`
			ExecutiveStatuses map[Role]AdvisorStatus `json:"executiveStatuses"`
		}{e.Type, e.ConsultationID, e.Executive, e.Response, e.ExecutiveStatuses})

	case EventFinal:
		consultations := e.Consultations
		if consultations == nil {
			consultations = []Consultation{}
		}
		return json.Marshal(struct {
			Type              EventType              `json:"type"`
			ConsultationID    string                 `json:"consultationId,omitempty"`
			CEOResponse       *AdvisorResponse       `json:"ceoResponse"`
			Consultations     []Consultation         `json:"consultations"`
			ExecutiveStatuses map[Role]AdvisorStatus `json:"executiveStatuses"`
			Synthesis         *IntegratedResponse    `json:"synthesis"`
			CostReport        *CostReport            `json:"costReport"`
			Warnings          []string               `json:"warnings,omitempty"`
		}{e.Type, e.ConsultationID, e.CEOResponse, consultations, e.ExecutiveStatuses, e.Synthesis, e.CostReport, e.Warnings})

	case EventError:
		return json.Marshal(struct {
			Type           EventType      `json:"type"`
			ConsultationID string         `json:"consultationId,omitempty"`
			Message        string         `json:"message"`
			Violations     []string       `json:"violations,omitempty"`
			Partial        *PartialResult `json:"partial,omitempty"`
		}{e.Type, e.ConsultationID, e.Message, e.Violations, e.Partial})
	}

	type plain Event
	return json.Marshal(plain(e))
}
