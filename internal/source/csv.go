package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"type", "reference", "amount", "currency", "sender_bic", "receiver_bic", "value_date"}

// CSV reads messages from a CSV file with a header row. The file is reopened
// on every call, so each call observes the file from the start.
//
// Recognized columns: id, type, reference, amount, currency, sender_bic,
// receiver_bic, value_date, ordering_customer, beneficiary, remittance_info.
// Rows without an id get "<file>-<line>".
type CSV struct {
	path string
}

// NewCSV creates a CSV source for path.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Messages implements domain.MessageSource.
func (s *CSV) Messages(ctx context.Context) ([]domain.PaymentMessage, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message file %s: %w", s.path, err)
	}
	defer file.Close()

	return Read(ctx, file, strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)))
}

// Read parses CSV messages from r. prefix names rows that carry no id.
func Read(ctx context.Context, r io.Reader, prefix string) ([]domain.PaymentMessage, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var msgs []domain.PaymentMessage
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}

		line, _ := reader.FieldPos(0)
		msg := domain.PaymentMessage{
			ID:               field(record, "id"),
			Type:             domain.MessageType(field(record, "type")),
			Reference:        field(record, "reference"),
			Amount:           field(record, "amount"),
			Currency:         field(record, "currency"),
			SenderBIC:        field(record, "sender_bic"),
			ReceiverBIC:      field(record, "receiver_bic"),
			ValueDate:        field(record, "value_date"),
			OrderingCustomer: field(record, "ordering_customer"),
			Beneficiary:      field(record, "beneficiary"),
			RemittanceInfo:   field(record, "remittance_info"),
		}
		if msg.ID == "" {
			msg.ID = fmt.Sprintf("%s-%d", prefix, line)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
