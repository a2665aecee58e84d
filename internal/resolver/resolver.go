// Package resolver links source-side identifiers to destination-assigned
// ids. Indexes are built once per entity-type pass from the destination's
// existing rows and are read-only afterwards.
//
// Resolution prefers precise identifier matches; the normalized-name
// fallback exists only because some contract sources carry nothing but a
// free-text client name, and it never guesses between equally ranked
// candidates.
package resolver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/areluna/finimport/internal/entity"
)

// Outcome classifies a resolution attempt.
type Outcome int

const (
	Unresolved Outcome = iota
	ResolvedByExternalID
	ResolvedBySourceID
	ResolvedByName
	AmbiguousName
)

func (o Outcome) Resolved() bool {
	return o == ResolvedByExternalID || o == ResolvedBySourceID || o == ResolvedByName
}

// Ref is one destination row's resolution keys, as returned by the store.
type Ref struct {
	ID         int64
	ExternalID string
	// NameKey is populated for clients only.
	NameKey string
}

// Directory is the read surface the resolver needs from the destination
// store. Implementations must return the complete row set, paginating
// past any server-side row cap.
type Directory interface {
	ClientRefs(ctx context.Context) ([]Ref, error)
	ContractRefs(ctx context.Context) ([]Ref, error)
}

type nameEntry struct {
	id        int64
	ambiguous bool
}

// Index maps resolution keys of one entity kind to destination ids.
type Index struct {
	kind         entity.Kind
	byExternalID map[string]int64
	byName       map[string]nameEntry
	// AllowNameMatch enables the last-resort normalized-name strategy.
	AllowNameMatch bool
	log            *logrus.Logger
}

func BuildClientIndex(ctx context.Context, d Directory, log *logrus.Logger) (*Index, error) {
	refs, err := d.ClientRefs(ctx)
	if err != nil {
		return nil, err
	}
	return newIndex(entity.KindClient, refs, log), nil
}

func BuildContractIndex(ctx context.Context, d Directory, log *logrus.Logger) (*Index, error) {
	refs, err := d.ContractRefs(ctx)
	if err != nil {
		return nil, err
	}
	return newIndex(entity.KindContract, refs, log), nil
}

func newIndex(kind entity.Kind, refs []Ref, log *logrus.Logger) *Index {
	ix := &Index{
		kind:         kind,
		byExternalID: make(map[string]int64, len(refs)),
		byName:       make(map[string]nameEntry),
		log:          log,
	}
	for _, r := range refs {
		if r.ExternalID != "" {
			ix.byExternalID[r.ExternalID] = r.ID
		}
		if r.NameKey == "" {
			continue
		}
		if prev, ok := ix.byName[r.NameKey]; ok {
			if prev.id != r.ID {
				prev.ambiguous = true
				ix.byName[r.NameKey] = prev
			}
			continue
		}
		ix.byName[r.NameKey] = nameEntry{id: r.ID}
	}
	return ix
}

func (ix *Index) Len() int { return len(ix.byExternalID) }

// Resolve maps a link reference to a destination id. Match order:
// derived external key, then the raw source identifier (for destinations
// that stored it verbatim), then — clients only, when enabled — the
// normalized name. Name matches are logged for manual audit; an
// ambiguous name never resolves.
func (ix *Index) Resolve(ref entity.LinkRef) (int64, Outcome) {
	if ref.ExternalID != "" {
		if id, ok := ix.byExternalID[ref.ExternalID]; ok {
			return id, ResolvedByExternalID
		}
	}
	if ref.SourceID != "" {
		if id, ok := ix.byExternalID[ref.SourceID]; ok {
			return id, ResolvedBySourceID
		}
	}
	if ix.kind == entity.KindClient && ix.AllowNameMatch && ref.Name != "" {
		first, last := entity.SplitName(ref.Name)
		key := entity.NameKey(first, last)
		if e, ok := ix.byName[key]; ok {
			if e.ambiguous {
				ix.log.WithField("name", ref.Name).
					Warn("name matches multiple clients, leaving unresolved")
				return 0, AmbiguousName
			}
			ix.log.WithFields(logrus.Fields{
				"name":      ref.Name,
				"client_id": e.id,
			}).Warn("resolved client by name match, review for mis-linking")
			return e.id, ResolvedByName
		}
	}
	return 0, Unresolved
}
