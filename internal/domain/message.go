package domain

import "time"

// Author identifies who wrote a transcript entry. Error notices are authored
// by the assistant; there is no system author.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsUser reports whether the message was typed by the user.
func (m Message) IsUser() bool {
	return m.Author == AuthorUser
}

// ContactRequest is the payload forwarded by the contact form.
type ContactRequest struct {
	Subject string
	Message string
	Email   string
}
