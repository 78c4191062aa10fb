package csvmap_test

import (
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/photosorter/csvmap"
)

var generatedName = regexp.MustCompile(`^2010-01-01__[a-z0-9]{10}\.jpg$`)

func TestParse_AllColumns(t *testing.T) {
	text := "original_filename,new_filename,new_date_taken,tags\nimg1.jpg,out1.jpg,1985:01:01 00:00:00,beach_sunset\n"

	records, tags, err := csvmap.Parse(text)

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records["img1.jpg"]
	assert.Equal(t, "out1.jpg", rec.NewFilename)
	assert.Equal(t, 1985, rec.Year)
	assert.True(t, rec.HasDate())
	assert.Equal(t, []string{"beach", "sunset"}, rec.Tags)
	assert.Equal(t, []string{"beach", "sunset"}, tags)
}

func TestParse_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   \n  ", "original_filename,tags\n"} {
		_, _, err := csvmap.Parse(text)
		assert.ErrorIs(t, err, csvmap.ErrEmptyCSV, "input %q", text)
	}
}

func TestParse_MissingFilenameHeader(t *testing.T) {
	_, _, err := csvmap.Parse("name,tags\na.jpg,x\n")
	assert.ErrorIs(t, err, csvmap.ErrMissingFilenameHeader)
}

func TestParse_OptionalColumnsAbsent(t *testing.T) {
	records, tags, err := csvmap.Parse("original_filename\na.jpg\nb.jpg\n")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvmap.Record{Tags: []string{}}, records["a.jpg"])
	assert.False(t, records["b.jpg"].HasDate())
	assert.Empty(t, tags)
}

func TestParse_ColumnOrderAndWhitespace(t *testing.T) {
	text := " tags , original_filename ,new_date_taken\r\n a_b , x.jpg , 2003:05:06 10:00:00\r\n"

	records, _, err := csvmap.Parse(text)

	require.NoError(t, err)
	rec := records["x.jpg"]
	assert.Equal(t, []string{"a", "b"}, rec.Tags)
	assert.Equal(t, 2003, rec.Year)
	assert.Empty(t, rec.NewFilename)
}

func TestParse_SkipsEmptyFilenameRows(t *testing.T) {
	text := "original_filename,tags\n,orphan\n\na.jpg,kept\n"

	records, tags, err := csvmap.Parse(text)

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []string{"kept"}, tags)
}

func TestParse_LastDuplicateWins(t *testing.T) {
	text := "original_filename,new_filename\na.jpg,first.jpg\na.jpg,second.jpg\n"

	records, _, err := csvmap.Parse(text)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second.jpg", records["a.jpg"].NewFilename)
}

func TestParse_TagsDropEmptyPieces(t *testing.T) {
	records, tags, err := csvmap.Parse("original_filename,tags\na.jpg,__x__y_\nb.jpg,y_z\n")

	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, records["a.jpg"].Tags)
	assert.Equal(t, []string{"x", "y", "z"}, tags)
}

func TestParse_UnparseableDateKeepsText(t *testing.T) {
	records, _, err := csvmap.Parse("original_filename,new_date_taken\na.jpg,unknown\n")

	require.NoError(t, err)
	rec := records["a.jpg"]
	assert.True(t, rec.HasDate())
	assert.Zero(t, rec.Year)
}

func TestParse_YearOutsideRangeNotValidated(t *testing.T) {
	records, _, err := csvmap.Parse("original_filename,new_date_taken\na.jpg,1850:01:01 00:00:00\n")

	require.NoError(t, err)
	assert.Equal(t, 1850, records["a.jpg"].Year)
}

// A comma inside a field shifts every later column. Kept as-is.
func TestParse_CommaInFieldShiftsColumns(t *testing.T) {
	records, _, err := csvmap.Parse("original_filename,new_filename,tags\na.jpg,x,y.jpg,t\n")

	require.NoError(t, err)
	assert.Equal(t, "x", records["a.jpg"].NewFilename)
	assert.Equal(t, []string{"y.jpg"}, records["a.jpg"].Tags)
}

func TestYearFromDate(t *testing.T) {
	cases := map[string]int{
		"":                    0,
		"1999:12:31 23:59:59": 1999,
		"2001":                2001,
		"1985abc:01:01":       1985,
		"abc":                 0,
		" 1990 :01:01":        1990,
	}
	for in, want := range cases {
		assert.Equal(t, want, csvmap.YearFromDate(in), "input %q", in)
	}
}

func TestSerialize_SingleRowGeneratedName(t *testing.T) {
	out, err := csvmap.Serialize([]csvmap.ExportRow{
		{OriginalFilename: "x.jpg", Year: 2010, Tags: []string{"a", "b"}},
	}, nil)

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "original_filename,new_filename,new_date_taken,tags", lines[0])

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 4)
	assert.Equal(t, "x.jpg", fields[0])
	assert.Regexp(t, generatedName, fields[1])
	assert.Equal(t, "2010:01:01 00:00:00", fields[2])
	assert.Equal(t, "a_b", fields[3])
}

func TestSerialize_StoredNameAndEmptyTags(t *testing.T) {
	out, err := csvmap.Serialize([]csvmap.ExportRow{
		{OriginalFilename: "y.jpg", NewFilename: "keep.jpg", Year: 1940, Tags: []string{}},
	}, func(int) string { t.Fatal("generator must not be called"); return "" })

	require.NoError(t, err)
	assert.Equal(t, "original_filename,new_filename,new_date_taken,tags\ny.jpg,keep.jpg,1940:01:01 00:00:00,\n", out)
}

func TestSerialize_NothingAssigned(t *testing.T) {
	out, err := csvmap.Serialize(nil, nil)

	assert.ErrorIs(t, err, csvmap.ErrNothingAssigned)
	assert.Empty(t, out)
}

func TestGenerateName(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.Regexp(t, generatedName, csvmap.GenerateName(2010))
	}
}

type triple struct {
	name string
	year int
	tags string
}

func TestRoundTrip_PreservesNameYearTags(t *testing.T) {
	text := "original_filename,new_filename,new_date_taken,tags\n" +
		"a.jpg,n1.jpg,1950:01:01 00:00:00,x_y\n" +
		"b.jpg,n2.jpg,2020:01:01 00:00:00,\n" +
		"c.jpg,n3.jpg,1939:01:01 00:00:00,z\n"

	records, _, err := csvmap.Parse(text)
	require.NoError(t, err)

	rows := make([]csvmap.ExportRow, 0, len(records))
	for name, rec := range records {
		rows = append(rows, csvmap.ExportRow{OriginalFilename: name, NewFilename: rec.NewFilename, Year: rec.Year, Tags: rec.Tags})
	}
	out, err := csvmap.Serialize(rows, nil)
	require.NoError(t, err)

	again, _, err := csvmap.Parse(out)
	require.NoError(t, err)

	collect := func(m map[string]csvmap.Record) []triple {
		var ts []triple
		for name, rec := range m {
			ts = append(ts, triple{name, rec.Year, strings.Join(rec.Tags, "_")})
		}
		sort.Slice(ts, func(i, j int) bool { return ts[i].name < ts[j].name })
		return ts
	}
	assert.Equal(t, collect(records), collect(again))
}
