package authfake

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Note is the protected resource behind the fake API
type Note struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

type NoteRepo struct {
	notes map[string]*Note
	lock  sync.RWMutex
}

func NewNoteRepo() *NoteRepo {
	return &NoteRepo{notes: make(map[string]*Note)}
}

func (nr *NoteRepo) Create(n *Note) *Note {
	nr.lock.Lock()
	defer nr.lock.Unlock()

	n.ID = uuid.New().String()
	nr.notes[n.ID] = n
	return n
}

// List returns all notes, oldest first
func (nr *NoteRepo) List() []Note {
	nr.lock.RLock()
	defer nr.lock.RUnlock()

	out := make([]Note, 0, len(nr.notes))
	for _, n := range nr.notes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
