package utils

import (
	"context"
	"testing"
)

type fetchedRow struct {
	ID int
}

func TestFetchModelsByIds_NoIdsSkipsQuery(t *testing.T) {
	rows, err := FetchModelsByIds[fetchedRow](context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows=%v want none", rows)
	}
}
