package server

import (
	"time"

	"chatroom/domain"
)

type registerRequest struct {
	Name string `json:"name"`
}

// messageRequest is the client-submitted part of a message. Author and
// timestamp fields sent in the body are ignored: the author is the identity
// header and the time is stamped by the server.
type messageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type participantResponse struct {
	Name     string `json:"name"`
	LastSeen string `json:"lastSeen"`
}

type messageResponse struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

func toParticipantResponse(p domain.Participant) participantResponse {
	return participantResponse{Name: p.Name, LastSeen: p.LastSeen.Format(time.RFC3339)}
}

func toParticipantResponses(participants []domain.Participant) []participantResponse {
	out := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		out = append(out, toParticipantResponse(p))
	}
	return out
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:   m.ID.String(),
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Type: string(m.Type),
		Time: m.At.Format(time.TimeOnly),
	}
}

func toMessageResponses(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}
