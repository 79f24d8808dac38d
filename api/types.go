package api

import "github.com/revahq/reva-widget/pagectx"

// SourceReference is a citation attached to an assistant message.
type SourceReference struct {
	Title   string  `json:"title"`
	URL     *string `json:"url"`
	Snippet string  `json:"snippet"`
	ChunkID *string `json:"chunk_id"`
}

// Product is a product recommendation returned alongside an assistant
// message, rendered outside the message bubble in receipt order.
type Product struct {
	ProductID  string   `json:"product_id"`
	Title      string   `json:"title"`
	Price      *float64 `json:"price"`
	ImageURL   *string  `json:"image_url"`
	InStock    bool     `json:"in_stock"`
	ProductURL *string  `json:"product_url"`
}

// SendMessageRequest is the body of POST /chat/messages.
type SendMessageRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Message        string              `json:"message"`
	SessionID      string              `json:"session_id"`
	Context        pagectx.PageContext `json:"context"`
}

// SendMessageResponse is the success payload of POST /chat/messages.
type SendMessageResponse struct {
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	Response       string            `json:"response"`
	Sources        []SourceReference `json:"sources"`
	Products       []Product         `json:"products"`
	CreatedAt      string            `json:"created_at"`
}

// ConversationMessage is one stored message of a fetched conversation.
type ConversationMessage struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Sources   []SourceReference `json:"sources,omitempty"`
	Products  []Product         `json:"products,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// Conversation is a backend-tracked message thread.
type Conversation struct {
	ID        string                `json:"id"`
	SessionID string                `json:"session_id"`
	Messages  []ConversationMessage `json:"messages"`
	CreatedAt string                `json:"created_at"`
	UpdatedAt string                `json:"updated_at"`
}

// RecoveryItem is one abandoned-cart line in a recovery offer.
type RecoveryItem struct {
	Title    string   `json:"title"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price"`
	ImageURL *string  `json:"image_url"`
}

// RecoveryOffer is the payload of GET /recovery/check.
type RecoveryOffer struct {
	HasRecovery bool           `json:"has_recovery"`
	Items       []RecoveryItem `json:"items"`
	CheckoutURL *string        `json:"checkout_url"`
	TotalPrice  *float64       `json:"total_price"`
}
