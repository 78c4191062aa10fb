// Package csvmap reads and writes the photo metadata mapping file
// (original_filename,new_filename,new_date_taken,tags).
//
// Fields are split on a plain comma with no quoting support, the same way the
// file has always been produced. A comma inside a filename or tag corrupts the
// row.
package csvmap

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	ColOriginalFilename = "original_filename"
	ColNewFilename      = "new_filename"
	ColNewDateTaken     = "new_date_taken"
	ColTags             = "tags"

	TagDelimiter = "_"

	// ExportFilename is the download name of a serialized mapping
	ExportFilename = "photo_metadata_map.csv"
)

var (
	ErrEmptyCSV              = errors.New("CSV is empty or missing data")
	ErrMissingFilenameHeader = errors.New(`CSV missing "original_filename" header`)
	ErrNothingAssigned       = errors.New("no photos assigned yet")
)

// Record is one parsed data row, keyed by original filename in Parse's result.
type Record struct {
	NewFilename string   // empty when the column is absent or blank
	NewDate     string   // raw new_date_taken text, empty when absent or blank
	Year        int      // year taken from NewDate, 0 when NewDate is empty or unparseable
	Tags        []string // never nil
}

// HasDate reports whether the row carried a date, even an unparseable one.
func (r Record) HasDate() bool {
	return r.NewDate != ""
}

// ExportRow is one assigned photo handed to Serialize.
type ExportRow struct {
	OriginalFilename string
	NewFilename      string
	Year             int
	Tags             []string
}

// NameGenerator produces an output filename for a photo without a stored one.
type NameGenerator func(year int) string

// Parse reads mapping text into records keyed by original filename. The second
// return value is every tag seen across accepted rows, deduplicated in
// first-seen order.
func Parse(text string) (map[string]Record, []string, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil, nil, ErrEmptyCSV
	}

	headers := strings.Split(lines[0], ",")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	filenameIdx := indexOf(headers, ColOriginalFilename)
	newNameIdx := indexOf(headers, ColNewFilename)
	dateIdx := indexOf(headers, ColNewDateTaken)
	tagsIdx := indexOf(headers, ColTags)

	if filenameIdx == -1 {
		return nil, nil, ErrMissingFilenameHeader
	}

	records := make(map[string]Record)
	var tagsSeen []string
	seen := make(map[string]bool)

	for _, line := range lines[1:] {
		row := strings.Split(line, ",")
		original := cell(row, filenameIdx)
		if original == "" {
			continue
		}

		rec := Record{
			NewFilename: cell(row, newNameIdx),
			NewDate:     cell(row, dateIdx),
			Tags:        SplitTags(cell(row, tagsIdx)),
		}
		rec.Year = YearFromDate(rec.NewDate)
		records[original] = rec

		for _, tag := range rec.Tags {
			if !seen[tag] {
				seen[tag] = true
				tagsSeen = append(tagsSeen, tag)
			}
		}
	}

	return records, tagsSeen, nil
}

// Serialize renders rows as mapping text. gen names rows without a NewFilename;
// nil means GenerateName.
func Serialize(rows []ExportRow, gen NameGenerator) (string, error) {
	if len(rows) == 0 {
		return "", ErrNothingAssigned
	}
	if gen == nil {
		gen = GenerateName
	}

	var b strings.Builder
	b.WriteString(strings.Join([]string{ColOriginalFilename, ColNewFilename, ColNewDateTaken, ColTags}, ","))
	b.WriteByte('\n')

	for _, row := range rows {
		newName := row.NewFilename
		if newName == "" {
			newName = gen(row.Year)
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s\n", row.OriginalFilename, newName, DateTaken(row.Year), strings.Join(row.Tags, TagDelimiter))
	}
	return b.String(), nil
}

// SplitTags splits a tags cell on the tag delimiter, dropping empty pieces.
func SplitTags(raw string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	for _, t := range strings.Split(raw, TagDelimiter) {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// YearFromDate extracts the year from a "YYYY:MM:DD HH:MM:SS" date. Only the
// leading digits of the first ':' separated part are read; 0 means none.
func YearFromDate(date string) int {
	if date == "" {
		return 0
	}
	head, _, _ := strings.Cut(date, ":")
	head = strings.TrimSpace(head)
	end := 0
	for end < len(head) && head[end] >= '0' && head[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	year, err := strconv.Atoi(head[:end])
	if err != nil {
		return 0
	}
	return year
}

// DateTaken renders the date written for an assigned year. Only the year is
// tracked, so day and time are fixed.
func DateTaken(year int) string {
	return fmt.Sprintf("%d:01:01 00:00:00", year)
}

const nameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateName returns "{year}-01-01__" plus 10 random lowercase alphanumerics
// and a .jpg suffix.
func GenerateName(year int) string {
	suffix := make([]byte, 10)
	for i := range suffix {
		suffix[i] = nameAlphabet[rand.IntN(len(nameAlphabet))]
	}
	return fmt.Sprintf("%d-01-01__%s.jpg", year, suffix)
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

// cell returns the trimmed field at idx, or "" when the column is absent or
// the row is short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
