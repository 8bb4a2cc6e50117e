package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dorsal/internal/faults"
	"dorsal/internal/processor"
)

func result(name string, numbers ...int) processor.DetectionResult {
	return processor.DetectionResult{Job: processor.ImageJob{Name: name}, Numbers: numbers}
}

func failed(name string) processor.DetectionResult {
	return processor.DetectionResult{
		Job: processor.ImageJob{Name: name},
		Err: faults.New(faults.Network, name, "inference request failed", errors.New("refused")),
	}
}

func TestTableKeepsFirstSeenOrder(t *testing.T) {
	table := NewTable()
	table.Add(result("b.jpg", 3))
	table.Add(result("a.jpg"))
	table.Add(result("b.jpg", 9, 4))

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "b.jpg", rows[0].Job.Name)
	assert.Equal(t, []int{9, 4}, rows[0].Numbers)
	assert.Equal(t, "a.jpg", rows[1].Job.Name)

	table.Reset()
	assert.Zero(t, table.Len())
}

func TestCounts(t *testing.T) {
	table := NewTable()
	table.Add(result("a.jpg", 12, 7))
	table.Add(result("b.jpg"))
	table.Add(failed("c.jpg"))
	assert.Equal(t, Counts{Files: 3, WithNumbers: 1, Empty: 1, Failed: 1}, table.Counts())
}

func TestWriteCSV(t *testing.T) {
	table := NewTable()
	table.Add(result("A.jpg", 12, 7))
	table.Add(result("B, final.jpg"))
	table.Add(failed("C.jpg"))

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	want := "Archivo,Número,Confianza\n" +
		"A.jpg,7-12,\n" +
		"\"B, final.jpg\",,\n" +
		"C.jpg,,\n"
	assert.Equal(t, want, buf.String())
}

func TestSaveCSV(t *testing.T) {
	table := NewTable()
	table.Add(result("x.png", 5))
	path := filepath.Join(t.TempDir(), "out", "results.csv")

	require.NoError(t, table.SaveCSV(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Archivo,Número,Confianza\nx.png,5,\n", string(data))
}
