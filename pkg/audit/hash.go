package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Hasher computes the chain hash of an entry given the previous entry hash.
type Hasher interface {
	Hash(e Entry, prevHash string) string
}

type sha256Hasher struct{}

// NewSHA256Hasher returns the default hasher.
func NewSHA256Hasher() Hasher {
	return sha256Hasher{}
}

func (sha256Hasher) Hash(e Entry, prevHash string) string {
	data := fmt.Sprintf(
		"%s|%d|%s|%s|%s|%s|%s|%s|%s|%d|%s|%s|%s",
		e.ID,
		e.Seq,
		e.EmailID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Status,
		e.Subject,
		strings.Join(e.Recipients, ","),
		e.Message,
		e.ErrorDetails,
		e.Attempt,
		e.Actor,
		e.ProviderMessageID,
		prevHash,
	)

	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks entries in append order: each hash must match its
// content and each PrevHash must equal the hash of the entry before it.
// The first entry's PrevHash is trusted so pruned logs still verify.
func VerifyChain(h Hasher, entries []Entry) error {
	if h == nil {
		h = NewSHA256Hasher()
	}
	for i, e := range entries {
		if i > 0 && e.PrevHash != entries[i-1].Hash {
			return fmt.Errorf("%w: entry %s does not link to %s", ErrChainBroken, e.ID, entries[i-1].ID)
		}
		if h.Hash(e, e.PrevHash) != e.Hash {
			return fmt.Errorf("%w: entry %s content does not match its hash", ErrChainBroken, e.ID)
		}
	}
	return nil
}
