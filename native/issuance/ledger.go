package issuance

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
)

// Storage abstracts the subset of state manager functionality required by the
// audit ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out *[][]byte) error
}

var (
	tradeRecordPrefix = []byte("issuance/trade/")
	tradeIndexKey     = []byte("issuance/trade/index")
)

// Trade kinds recorded within the audit ledger.
const (
	TradeKindMint = "mint"
	TradeKindBurn = "burn"
)

// TradeRecord captures the audit metadata stored for every settled buy and
// sell.
type TradeRecord struct {
	ID           string
	Kind         string
	Account      [20]byte
	Reserve      *big.Int
	Tokens       *big.Int
	BuyerShare   *big.Int
	FounderShare *big.Int
	CreatedAt    int64
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (r *TradeRecord) Copy() *TradeRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Reserve != nil {
		clone.Reserve = new(big.Int).Set(r.Reserve)
	}
	if r.Tokens != nil {
		clone.Tokens = new(big.Int).Set(r.Tokens)
	}
	if r.BuyerShare != nil {
		clone.BuyerShare = new(big.Int).Set(r.BuyerShare)
	}
	if r.FounderShare != nil {
		clone.FounderShare = new(big.Int).Set(r.FounderShare)
	}
	return &clone
}

type storedTradeRecord struct {
	ID           string
	Kind         string
	Account      [20]byte
	Reserve      string
	Tokens       string
	BuyerShare   string
	FounderShare string
	CreatedAt    uint64
}

type tradeIndexEntry struct {
	ID        string
	CreatedAt uint64
}

// AuditLedger persists trade records in the underlying key-value store. It is
// append-only: records are never rewritten once stored.
type AuditLedger struct {
	store Storage
	clock func() time.Time
}

// NewAuditLedger constructs a ledger bound to the provided storage backend.
func NewAuditLedger(store Storage) *AuditLedger {
	return &AuditLedger{store: store, clock: time.Now}
}

// SetClock overrides the time source (primarily for deterministic testing).
func (l *AuditLedger) SetClock(clock func() time.Time) {
	if l == nil || clock == nil {
		return
	}
	l.clock = clock
}

// Put stores the trade record, assigning an identifier and timestamp when the
// caller left them empty.
func (l *AuditLedger) Put(record *TradeRecord) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("audit ledger not initialised")
	}
	if record == nil {
		return fmt.Errorf("audit ledger: record must not be nil")
	}
	if record.Kind != TradeKindMint && record.Kind != TradeKindBurn {
		return fmt.Errorf("audit ledger: unknown trade kind %q", record.Kind)
	}
	stored := toStoredTrade(record)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt == 0 {
		now := l.clock().UTC().Unix()
		if now > 0 {
			stored.CreatedAt = uint64(now)
		}
	}
	key := tradeKey(stored.ID)
	var existing storedTradeRecord
	if ok, err := l.store.KVGet(key, &existing); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("audit ledger: trade %s already exists", stored.ID)
	}
	if err := l.store.KVPut(key, stored); err != nil {
		return err
	}
	entry := tradeIndexEntry{ID: stored.ID, CreatedAt: stored.CreatedAt}
	encoded, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	return l.store.KVAppend(tradeIndexKey, encoded)
}

// Get retrieves a trade record by identifier.
func (l *AuditLedger) Get(id string) (*TradeRecord, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("audit ledger not initialised")
	}
	var stored storedTradeRecord
	ok, err := l.store.KVGet(tradeKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := fromStoredTrade(&stored)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// List returns a paginated slice of trade records within the supplied
// timestamp window. Both bounds are inclusive; zero disables a bound. The
// cursor is the identifier of the last item from the previous page.
func (l *AuditLedger) List(startTs, endTs int64, cursor string, limit int) ([]*TradeRecord, string, error) {
	if l == nil || l.store == nil {
		return nil, "", fmt.Errorf("audit ledger not initialised")
	}
	entries, err := l.loadIndex()
	if err != nil {
		return nil, "", err
	}
	filtered := make([]tradeIndexEntry, 0, len(entries))
	for _, entry := range entries {
		createdAt := int64(entry.CreatedAt)
		if startTs != 0 && createdAt < startTs {
			continue
		}
		if endTs != 0 && createdAt > endTs {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt == filtered[j].CreatedAt {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].CreatedAt < filtered[j].CreatedAt
	})
	startIdx := 0
	cursorID := strings.TrimSpace(cursor)
	if cursorID != "" {
		for i, entry := range filtered {
			if entry.ID == cursorID {
				startIdx = i + 1
				break
			}
		}
	}
	pageSize := limit
	if pageSize <= 0 {
		pageSize = len(filtered) - startIdx
	}
	records := make([]*TradeRecord, 0, pageSize)
	nextCursor := ""
	for i := startIdx; i < len(filtered) && len(records) < pageSize; i++ {
		record, ok, err := l.Get(filtered[i].ID)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		records = append(records, record)
		nextCursor = filtered[i].ID
	}
	if startIdx+len(records) >= len(filtered) {
		nextCursor = ""
	}
	return records, nextCursor, nil
}

// ExportCSV generates a deterministic CSV export covering the provided
// timestamp window. The CSV is returned base64 encoded alongside the entry
// count and the total token volume across the window.
func (l *AuditLedger) ExportCSV(startTs, endTs int64) (string, int, *big.Int, error) {
	entries, _, err := l.List(startTs, endTs, "", 0)
	if err != nil {
		return "", 0, nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"id", "kind", "account", "reserve", "tokens", "buyerShare", "founderShare", "createdAt"}
	if err := writer.Write(header); err != nil {
		return "", 0, nil, err
	}
	total := big.NewInt(0)
	for _, record := range entries {
		if record.Tokens != nil {
			total = new(big.Int).Add(total, record.Tokens)
		}
		row := []string{
			record.ID,
			record.Kind,
			hex.EncodeToString(record.Account[:]),
			bigOrZero(record.Reserve),
			bigOrZero(record.Tokens),
			bigOrZero(record.BuyerShare),
			bigOrZero(record.FounderShare),
			strconv.FormatInt(record.CreatedAt, 10),
		}
		if err := writer.Write(row); err != nil {
			return "", 0, nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", 0, nil, err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), len(entries), total, nil
}

func (l *AuditLedger) loadIndex() ([]tradeIndexEntry, error) {
	var raw [][]byte
	if err := l.store.KVGetList(tradeIndexKey, &raw); err != nil {
		return nil, err
	}
	entries := make([]tradeIndexEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var entry tradeIndexEntry
		if err := rlp.DecodeBytes(encoded, &entry); err != nil {
			return nil, err
		}
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func tradeKey(id string) []byte {
	trimmed := strings.TrimSpace(id)
	buf := make([]byte, len(tradeRecordPrefix)+len(trimmed))
	copy(buf, tradeRecordPrefix)
	copy(buf[len(tradeRecordPrefix):], trimmed)
	return buf
}

func toStoredTrade(record *TradeRecord) storedTradeRecord {
	stored := storedTradeRecord{
		ID:      strings.TrimSpace(record.ID),
		Kind:    record.Kind,
		Account: record.Account,
	}
	stored.Reserve = bigOrZero(record.Reserve)
	stored.Tokens = bigOrZero(record.Tokens)
	stored.BuyerShare = bigOrZero(record.BuyerShare)
	stored.FounderShare = bigOrZero(record.FounderShare)
	if record.CreatedAt > 0 {
		stored.CreatedAt = uint64(record.CreatedAt)
	}
	return stored
}

func fromStoredTrade(stored *storedTradeRecord) (*TradeRecord, error) {
	if stored == nil {
		return nil, fmt.Errorf("audit ledger: nil stored record")
	}
	record := &TradeRecord{
		ID:        stored.ID,
		Kind:      stored.Kind,
		Account:   stored.Account,
		CreatedAt: int64(stored.CreatedAt),
	}
	var err error
	if record.Reserve, err = parseBig(stored.Reserve); err != nil {
		return nil, err
	}
	if record.Tokens, err = parseBig(stored.Tokens); err != nil {
		return nil, err
	}
	if record.BuyerShare, err = parseBig(stored.BuyerShare); err != nil {
		return nil, err
	}
	if record.FounderShare, err = parseBig(stored.FounderShare); err != nil {
		return nil, err
	}
	return record, nil
}

func parseBig(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("audit ledger: invalid amount %q", raw)
	}
	return value, nil
}

func bigOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
