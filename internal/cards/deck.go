package cards

import (
	"encoding/json"
	"errors"

	"shortdeck-engine/pkg/rng"
)

// ErrDeckEmpty is returned when a deal is attempted with no cards left.
var ErrDeckEmpty = errors.New("deck is empty")

// ErrInsufficientCards is returned when a multi-card deal would exceed
// what remains in the deck.
var ErrInsufficientCards = errors.New("not enough cards remaining")

// Deck is an ordered stack of cards; the head (index 0) is the next card
// to be dealt.
type Deck struct {
	cards []Card
}

// New returns a fresh, unshuffled 36-card short deck ordered by rank then
// suit.
func New() *Deck {
	cards := make([]Card, 0, NumCards)
	for r := Six; r <= Ace; r++ {
		for s := Clubs; s <= Spades; s++ {
			cards = append(cards, Card{Rank: r, Suit: s})
		}
	}
	return &Deck{cards: cards}
}

// Shuffled returns a fresh short deck shuffled uniformly at random using
// the given RNG system.
func Shuffled(source *rng.System) *Deck {
	d := New()
	source.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
	return d
}

// FromIDs rebuilds a deck in the given dense-id order, the inverse of
// IDs. Used by crash recovery to restore exactly the remaining deck a
// hand_started event captured, without re-shuffling.
func FromIDs(ids []int) *Deck {
	cs := make([]Card, len(ids))
	for i, id := range ids {
		cs[i] = FromID(id)
	}
	return &Deck{cards: cs}
}

// Len returns the number of cards remaining.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Deal removes and returns the head card.
func (d *Deck) Deal() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckEmpty
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, nil
}

// DealN removes and returns the next n cards in dealing order. It fails
// atomically (no partial deal) when n exceeds what remains.
func (d *Deck) DealN(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, ErrInsufficientCards
	}
	out := make([]Card, n)
	copy(out, d.cards[:n])
	d.cards = d.cards[n:]
	return out, nil
}

// Burn discards the head card without returning it, the standard
// pre-street burn. It is an error to burn from an empty deck.
func (d *Deck) Burn() error {
	_, err := d.Deal()
	return err
}

// IDs returns the dense card-id representation of the remaining deck, in
// order, for audit logging.
func (d *Deck) IDs() []int {
	ids := make([]int, len(d.cards))
	for i, c := range d.cards {
		ids[i] = c.ID()
	}
	return ids
}

// Clone returns an independent copy of the deck.
func (d *Deck) Clone() *Deck {
	cp := make([]Card, len(d.cards))
	copy(cp, d.cards)
	return &Deck{cards: cp}
}

// MarshalJSON encodes the deck as its dense card-id order, the same
// representation IDs/FromIDs use, so a snapshot round-trips through
// JSON without re-shuffling.
func (d *Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.IDs())
}

// UnmarshalJSON rebuilds the deck from the id order MarshalJSON wrote.
func (d *Deck) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	d.cards = make([]Card, len(ids))
	for i, id := range ids {
		d.cards[i] = FromID(id)
	}
	return nil
}
