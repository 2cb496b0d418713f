package cards

import "testing"

func TestDefault_UniqueIDsAndContent(t *testing.T) {
	ids := make(map[string]bool)
	contents := make(map[string]bool)
	for _, typ := range Categories {
		cards := Default.Of(typ)
		if len(cards) == 0 {
			t.Fatalf("Category %s is empty", typ)
		}
		for _, c := range cards {
			if c.Type != typ {
				t.Errorf("Card %s has type %s, expected %s", c.ID, c.Type, typ)
			}
			if ids[c.ID] {
				t.Errorf("Duplicate card id %s", c.ID)
			}
			if contents[c.Content] {
				t.Errorf("Duplicate card content %q", c.Content)
			}
			if c.Content == WaterContent {
				t.Errorf("Function card %s shares content with water cards", c.ID)
			}
			ids[c.ID] = true
			contents[c.Content] = true
		}
	}
	if Default.Size() != len(ids) {
		t.Errorf("Size() = %d, expected %d", Default.Size(), len(ids))
	}
}

func TestCatalog_CloneIsIndependent(t *testing.T) {
	clone := Default.Clone()
	clone.Person[0].Content = "changed"
	clone.Place = clone.Place[:1]

	if Default.Person[0].Content == "changed" {
		t.Error("Mutating a clone must not touch the source catalog")
	}
	if len(Default.Place) == 1 {
		t.Error("Reslicing a clone must not touch the source catalog")
	}
}

func TestCatalog_Lookup(t *testing.T) {
	card, ok := Default.Lookup("l3")
	if !ok {
		t.Fatal("Expected to find l3")
	}
	if card.Type != Place {
		t.Errorf("Expected place card, got %s", card.Type)
	}
	if _, ok := Default.Lookup("w1"); ok {
		t.Error("Water cards are not part of the catalog")
	}
}

func TestNewWater(t *testing.T) {
	w := NewWater(2)
	if w.ID != "w2" || !w.IsWater() || w.Content != WaterContent {
		t.Errorf("Unexpected water card %+v", w)
	}
}
