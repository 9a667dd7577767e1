package domain

import "time"

// Kind distinguishes the two sides of the board.
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
)

// ParseKind normalizes a kind value read from storage. Legacy rows created
// before the buy/sell split carry "material"; those and anything else
// unrecognized are treated as sell cards.
func ParseKind(s string) Kind {
	if Kind(s) == KindBuy {
		return KindBuy
	}
	return KindSell
}

// Valid reports whether k is an accepted form value.
func (k Kind) Valid() bool {
	return k == KindBuy || k == KindSell
}

// Submission is one classified ad. Rows are immutable through the public
// surface; only the admin area may edit or remove them.
type Submission struct {
	ID          string
	CreatedAt   time.Time
	Kind        Kind
	Title       string
	Price       string
	Phone       string
	Description string
	Photos      []string
	Password    string
}

// Locked reports whether the card hides its photos behind a password.
func (s *Submission) Locked() bool {
	return s.Password != ""
}
