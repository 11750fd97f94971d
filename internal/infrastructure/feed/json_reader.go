package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/storefront/landedcost/internal/domain/integration"
)

// JSONReader accepts either a top-level array of products or an object
// with a "products" array
type JSONReader struct{}

type jsonEnvelope struct {
	Products []integration.SupplierProduct `json:"products"`
}

// Read implements Reader
func (JSONReader) Read(r io.Reader) ([]integration.SupplierProduct, error) {
	br := bufio.NewReader(r)
	if err := skipBOM(br); err != nil {
		return nil, err
	}

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, ErrEmptyFeed
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	switch first {
	case '[':
		var products []integration.SupplierProduct
		if err := dec.Decode(&products); err != nil {
			return nil, fmt.Errorf("invalid JSON feed: %w", err)
		}
		return products, nil
	case '{':
		var env jsonEnvelope
		if err := dec.Decode(&env); err != nil {
			return nil, fmt.Errorf("invalid JSON feed: %w", err)
		}
		return env.Products, nil
	default:
		return nil, fmt.Errorf("invalid JSON feed: unexpected leading %q", first)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// skipBOM discards a leading UTF-8 byte order mark
func skipBOM(br *bufio.Reader) error {
	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read feed: %w", err)
	}
	if len(head) == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return nil
}
