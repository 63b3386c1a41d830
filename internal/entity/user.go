package entity

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

const DefaultRating = 1200

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash,omitempty"`
	Rating       int    `json:"rating"`
	Status       string `json:"status"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// Rank buckets the rating into the label shown in the online players list.
func (that *User) Rank() string {
	switch {
	case that.Rating < 1200:
		return "Bronze"
	case that.Rating < 1400:
		return "Silver"
	case that.Rating < 1600:
		return "Gold"
	case that.Rating < 1800:
		return "Platinum"
	default:
		return "Diamond"
	}
}
