package models

// TelegramUser is the user object embedded in Telegram WebApp init data
type TelegramUser struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name,omitempty"`
	Username  *string `json:"username,omitempty"`
	PhotoURL  *string `json:"photo_url,omitempty"`
	AuthDate  int64   `json:"auth_date,omitempty"`
}

// TelegramValidation is returned by the validate endpoint
type TelegramValidation struct {
	Valid bool          `json:"valid"`
	User  *TelegramUser `json:"user"`
}
