package repositories

import (
	"fmt"
	"strings"
	"time"

	"trivia-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// Record is a decoded, human readable view of one stored value.
type Record struct {
	Key    string
	Kind   string
	At     time.Time
	Entity string
	Scope  string
	Detail string
}

// Dump walks every key under prefix in key order. Values that fail to
// decode are reported as RAW rather than aborting the walk.
func Dump(db *badger.DB, prefix string, fn func(Record) error) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())
			var record Record
			if err := item.Value(func(val []byte) error {
				record = describe(key, val)
				return nil
			}); err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func describe(key string, val []byte) Record {
	raw := Record{Key: key, Kind: "RAW", Detail: fmt.Sprintf("Size: %d bytes", len(val))}
	switch {
	case strings.HasPrefix(key, "session:"):
		var r sessionRecord
		if err := decode(val, &r); err != nil {
			return raw
		}
		s := toSession(r)
		detail := fmt.Sprintf("%q phase=%s", s.Name, s.Phase)
		if len(s.Categories) > 0 {
			detail += " categories=" + strings.Join(lo.Map(s.Categories, func(c domain.Category, _ int) string {
				return string(c)
			}), ",")
		}
		return Record{Key: key, Kind: "SESSION", At: s.CreatedAt, Entity: string(s.ID), Scope: string(s.Phase), Detail: detail}
	case strings.HasPrefix(key, "participant:"):
		var r participantRecord
		if err := decode(val, &r); err != nil {
			return raw
		}
		p := toParticipant(r)
		return Record{Key: key, Kind: "PARTICIPANT", At: p.CreatedAt, Entity: string(p.ID),
			Scope: string(p.SessionID), Detail: p.DisplayName}
	case strings.HasPrefix(key, "user:"):
		var r userRecord
		if err := decode(val, &r); err != nil {
			return raw
		}
		return Record{Key: key, Kind: "USER", At: time.Unix(0, r.CreatedAt).UTC(), Entity: r.ID,
			Scope: strings.Join(r.Roles, ","), Detail: r.Email}
	}
	return raw
}
