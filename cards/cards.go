// Package cards holds the static person/place/event catalog that rooms deal from.
package cards

import "fmt"

type Type string

const (
	Person Type = "person"
	Place  Type = "place"
	Event  Type = "event"
	Water  Type = "water"
)

// Categories lists the function card types in sentence order.
var Categories = []Type{Person, Place, Event}

type Card struct {
	ID      string `json:"id"`
	Type    Type   `json:"type"`
	Content string `json:"content"`
}

func (c Card) IsWater() bool {
	return c.Type == Water
}

const WaterContent = "Water"

// NewWater builds the n-th (1-based) water card of a room.
func NewWater(n int) Card {
	return Card{ID: fmt.Sprintf("w%d", n), Type: Water, Content: WaterContent}
}

// Catalog is the full set of function cards a room starts with.
type Catalog struct {
	Person []Card
	Place  []Card
	Event  []Card
}

// Clone returns copies of every category so callers may mutate them freely.
func (c Catalog) Clone() Catalog {
	return Catalog{
		Person: append([]Card(nil), c.Person...),
		Place:  append([]Card(nil), c.Place...),
		Event:  append([]Card(nil), c.Event...),
	}
}

func (c Catalog) Of(t Type) []Card {
	switch t {
	case Person:
		return c.Person
	case Place:
		return c.Place
	case Event:
		return c.Event
	}
	return nil
}

func (c Catalog) Size() int {
	return len(c.Person) + len(c.Place) + len(c.Event)
}

// Lookup finds a function card by id.
func (c Catalog) Lookup(id string) (Card, bool) {
	for _, t := range Categories {
		for _, card := range c.Of(t) {
			if card.ID == id {
				return card, true
			}
		}
	}
	return Card{}, false
}

func build(prefix string, t Type, contents ...string) []Card {
	out := make([]Card, len(contents))
	for i, content := range contents {
		out[i] = Card{ID: fmt.Sprintf("%s%d", prefix, i+1), Type: t, Content: content}
	}
	return out
}

// Default is the catalog served when no other is configured.
var Default = Catalog{
	Person: build("p", Person,
		"The Butler", "The Gardener", "The Detective", "The Heiress",
		"The Chef", "The Professor", "The Captain", "The Painter",
	),
	Place: build("l", Place,
		"Library", "Greenhouse", "Ballroom", "Kitchen",
		"Train Station", "Lighthouse", "Wine Cellar", "Observatory",
	),
	Event: build("e", Event,
		"Stolen Necklace", "Forged Will", "Broken Clock", "Missing Letter",
		"Poisoned Tea", "Secret Wedding", "Burned Diary", "Midnight Duel",
	),
}
