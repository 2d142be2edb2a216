package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vouchd/internal/domain"
)

// ZeroAuditHash anchors the chain: the first entry links to it instead of a
// previous entry.
func ZeroAuditHash() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"
}

// AuditPayloadHash hashes the JSON encoding of an entry payload. Map keys
// are emitted in sorted order, so the hash is stable across a round trip
// through storage.
func AuditPayloadHash(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return sha256Hex(raw), nil
}

// ChainAuditEntry fills PayloadHash and EntryHash on an entry whose Seq and
// PrevHash have already been assigned by the appending store. Every
// AuditRepository implementation calls this so the chain is computed one way.
func ChainAuditEntry(entry *domain.AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry required")
	}
	if entry.Seq <= 0 {
		return fmt.Errorf("audit entry seq must be positive, got %d", entry.Seq)
	}
	if entry.PrevHash == "" {
		return errors.New("audit entry missing prev hash")
	}
	if entry.CreatedAt.IsZero() {
		return errors.New("audit entry missing created_at")
	}
	payloadHash, err := AuditPayloadHash(entry.Payload)
	if err != nil {
		return err
	}
	entry.PayloadHash = payloadHash
	entryHash, err := computeEntryHash(*entry)
	if err != nil {
		return err
	}
	entry.EntryHash = entryHash
	return nil
}

// VerifyAuditChain walks the whole trail in sequence order and checks that
// every link still holds: contiguous sequence numbers from 1, prev-hash
// linkage from the zero hash, payload hashes matching the stored payloads,
// and entry hashes matching a recomputation over the chain region.
func VerifyAuditChain(ctx context.Context, repo AuditRepository) error {
	if repo == nil {
		return errors.New("audit repository required")
	}
	entries, err := repo.ListChain(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	expectedSeq := int64(1)
	prevHash := ZeroAuditHash()
	for _, entry := range entries {
		if entry.Seq != expectedSeq {
			return fmt.Errorf("audit chain seq mismatch: expected %d got %d", expectedSeq, entry.Seq)
		}
		if entry.PrevHash != prevHash {
			return fmt.Errorf("audit chain prev hash mismatch at seq %d", entry.Seq)
		}
		payloadHash, err := AuditPayloadHash(entry.Payload)
		if err != nil {
			return fmt.Errorf("audit chain payload hash failed at seq %d: %w", entry.Seq, err)
		}
		if payloadHash != entry.PayloadHash {
			return fmt.Errorf("audit chain payload hash mismatch at seq %d", entry.Seq)
		}
		if entry.CreatedAt.IsZero() {
			return fmt.Errorf("audit chain missing created_at at seq %d", entry.Seq)
		}
		expectedHash, err := computeEntryHash(entry)
		if err != nil {
			return fmt.Errorf("audit chain hash compute failed at seq %d: %w", entry.Seq, err)
		}
		if expectedHash != entry.EntryHash {
			return fmt.Errorf("audit chain hash mismatch at seq %d", entry.Seq)
		}
		prevHash = entry.EntryHash
		expectedSeq++
	}
	return nil
}

func computeEntryHash(entry domain.AuditEntry) (string, error) {
	if entry.Action == "" {
		return "", errors.New("audit entry missing action")
	}
	if entry.PayloadHash == "" || entry.PrevHash == "" {
		return "", errors.New("audit entry missing payload_hash or prev_hash")
	}
	region := chainRegion{
		Version:     domain.AuditChainVersion,
		Seq:         entry.Seq,
		Action:      string(entry.Action),
		ActorID:     entry.ActorID,
		TargetType:  string(entry.TargetType),
		TargetID:    entry.TargetID,
		FromStatus:  string(entry.FromStatus),
		ToStatus:    string(entry.ToStatus),
		Result:      string(entry.Result),
		ErrorCode:   entry.ErrorCode,
		PayloadHash: entry.PayloadHash,
		PrevHash:    entry.PrevHash,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return sha256Hex(region.CanonicalJSON()), nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

type chainRegion struct {
	Version     string
	Seq         int64
	Action      string
	ActorID     string
	TargetType  string
	TargetID    string
	FromStatus  string
	ToStatus    string
	Result      string
	ErrorCode   string
	PayloadHash string
	PrevHash    string
	CreatedAt   string
}

// CanonicalJSON writes the chain region with keys in a fixed alphabetical
// order so the hash does not depend on encoder behavior.
func (c chainRegion) CanonicalJSON() []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeKV(buf, "action", c.Action, false)
	writeKV(buf, "actor_id", c.ActorID, false)
	writeKV(buf, "created_at", c.CreatedAt, false)
	writeKV(buf, "error_code", c.ErrorCode, false)
	writeKV(buf, "from_status", c.FromStatus, false)
	writeKV(buf, "payload_hash", c.PayloadHash, false)
	writeKV(buf, "prev_hash", c.PrevHash, false)
	writeKV(buf, "result", c.Result, false)
	writeKVNumber(buf, "seq", c.Seq, false)
	writeKV(buf, "target_id", c.TargetID, false)
	writeKV(buf, "target_type", c.TargetType, false)
	writeKV(buf, "to_status", c.ToStatus, false)
	writeKV(buf, "v", c.Version, true)
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeKV(buf *bytes.Buffer, key, value string, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	writeJSONString(buf, value)
	if !last {
		buf.WriteByte(',')
	}
}

func writeKVNumber(buf *bytes.Buffer, key string, value int64, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatInt(value, 10))
	if !last {
		buf.WriteByte(',')
	}
}

func writeJSONString(buf *bytes.Buffer, value string) {
	buf.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")
