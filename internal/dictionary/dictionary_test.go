package dictionary

import (
	"context"
	"testing"

	"mywi/internal/model"
)

type fakeStore struct {
	words    []model.Word
	nextID   int64
	entries  map[[2]int64]bool
	dictByLand map[int64][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:    make(map[[2]int64]bool),
		dictByLand: make(map[int64][]int64),
	}
}

func (f *fakeStore) CountLandDictionary(ctx context.Context, landID int64) (int, error) {
	return len(f.dictByLand[landID]), nil
}

func (f *fakeStore) ClearLandDictionary(ctx context.Context, landID int64) error {
	for id := range f.entries {
		if id[0] == landID {
			delete(f.entries, id)
		}
	}
	f.dictByLand[landID] = nil
	return nil
}

func (f *fakeStore) LandWords(ctx context.Context, landID int64) ([]model.Word, error) {
	var out []model.Word
	for _, wordID := range f.dictByLand[landID] {
		for _, w := range f.words {
			if w.ID == wordID {
				out = append(out, w)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FindWordByWord(ctx context.Context, word, language string) (*model.Word, bool, error) {
	for i := range f.words {
		if f.words[i].Word == word && f.words[i].Language == language {
			return &f.words[i], true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeStore) FindWordByLemma(ctx context.Context, lemma, language string) (*model.Word, bool, error) {
	for i := range f.words {
		if f.words[i].Lemma == lemma && f.words[i].Language == language {
			return &f.words[i], true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeStore) CreateWord(ctx context.Context, w model.Word) (model.Word, error) {
	f.nextID++
	w.ID = f.nextID
	f.words = append(f.words, w)
	return w, nil
}

func (f *fakeStore) HasLandDictionaryEntry(ctx context.Context, landID, wordID int64) (bool, error) {
	return f.entries[[2]int64{landID, wordID}], nil
}

func (f *fakeStore) InsertLandDictionaryEntry(ctx context.Context, entry model.LandDictionary) error {
	f.entries[[2]int64{entry.LandID, entry.WordID}] = true
	f.dictByLand[entry.LandID] = append(f.dictByLand[entry.LandID], entry.WordID)
	return nil
}

func TestPopulate_SeedsAndExpandsVariants(t *testing.T) {
	store := newFakeStore()
	land := model.Land{ID: 1, Lang: []string{"en"}}

	res, err := Populate(context.Background(), store, land, []string{"cat", "run"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped {
		t.Fatalf("expected not skipped on first populate")
	}
	if res.WordsAdded == 0 {
		t.Fatalf("expected base words to be added")
	}

	count, _ := store.CountLandDictionary(context.Background(), 1)
	if count <= 2 {
		t.Fatalf("expected variants to expand dictionary beyond seed count, got %d entries", count)
	}
}

func TestPopulate_SkipsWhenAlreadyPopulatedAndNotForced(t *testing.T) {
	store := newFakeStore()
	land := model.Land{ID: 1, Lang: []string{"en"}}

	if _, err := Populate(context.Background(), store, land, []string{"cat"}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := store.CountLandDictionary(context.Background(), 1)

	res, err := Populate(context.Background(), store, land, []string{"dog"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected second populate to be skipped")
	}

	after, _ := store.CountLandDictionary(context.Background(), 1)
	if before != after {
		t.Fatalf("expected dictionary unchanged when skipped, before=%d after=%d", before, after)
	}
}

func TestPopulate_ForceRefreshClearsAndRepopulates(t *testing.T) {
	store := newFakeStore()
	land := model.Land{ID: 1, Lang: []string{"en"}}

	if _, err := Populate(context.Background(), store, land, []string{"cat"}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := Populate(context.Background(), store, land, []string{"dog"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped {
		t.Fatalf("expected force refresh to not skip")
	}

	words, _ := store.LandWords(context.Background(), 1)
	for _, w := range words {
		if w.Word == "cat" {
			t.Fatalf("expected old word 'cat' to be cleared after force refresh")
		}
	}
}

func TestFrenchVariations_CoversGenderNumberVerbRules(t *testing.T) {
	variants := frenchVariations("joueur")
	found := false
	for _, v := range variants {
		if v == "joueurs" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected plural variant, got %v", variants)
	}
}

func TestEnglishVariations_CoversPluralAndTense(t *testing.T) {
	variants := englishVariations("run")
	wantAny := map[string]bool{"runs": false, "runed": false, "runing": false, "runer": false, "runest": false}
	for _, v := range variants {
		if _, ok := wantAny[v]; ok {
			wantAny[v] = true
		}
	}
	if !wantAny["runs"] {
		t.Fatalf("expected plural variant 's', got %v", variants)
	}
}
