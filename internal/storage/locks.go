package storage

import (
	"sync"

	"github.com/Veraticus/classbot/internal/model"
)

// collectionLocks hands out one mutex per collection.
type collectionLocks struct {
	locks map[model.Collection]*sync.Mutex
	mu    sync.Mutex
}

func (l *collectionLocks) lock(c model.Collection) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[model.Collection]*sync.Mutex)
	}
	m, ok := l.locks[c]
	if !ok {
		m = &sync.Mutex{}
		l.locks[c] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
