package jsonapi

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListQuery(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	cfg, err := reg.Config("people")
	require.NoError(t, err)
	limits := PageLimits{DefaultSize: 20, MaxSize: 50}

	tests := []struct {
		name      string
		query     string
		want      ListQuery
		wantParam string
	}{
		{
			name:  "defaults",
			query: "",
			want:  ListQuery{Page: Page{Number: 1, Size: 20}},
		},
		{
			name:  "sort and include",
			query: "sort=-created_at,name&include=articles,articles",
			want: ListQuery{
				Sort:    []SortField{{Field: "created_at", Descending: true}, {Field: "name"}},
				Include: []string{"articles"},
				Page:    Page{Number: 1, Size: 20},
			},
		},
		{
			name:  "explicit page",
			query: "page[number]=3&page[size]=5",
			want:  ListQuery{Page: Page{Number: 3, Size: 5}},
		},
		{name: "unknown sort", query: "sort=age", wantParam: "sort"},
		{name: "empty sort field", query: "sort=name,", wantParam: "sort"},
		{name: "bare minus", query: "sort=-", wantParam: "sort"},
		{name: "unknown include", query: "include=friends", wantParam: "include"},
		{name: "page number zero", query: "page[number]=0", wantParam: "page[number]"},
		{name: "page number text", query: "page[number]=two", wantParam: "page[number]"},
		{name: "page size too large", query: "page[size]=51", wantParam: "page[size]"},
		{name: "page size zero", query: "page[size]=0", wantParam: "page[size]"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParseListQuery(cfg, values, limits)
			if tt.wantParam != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidQueryParameter)
				var jerr *Error
				require.ErrorAs(t, err, &jerr)
				assert.Equal(t, tt.wantParam, jerr.Parameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPage_Offset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Page{Number: 1, Size: 10}.Offset())
	assert.Equal(t, 20, Page{Number: 3, Size: 10}.Offset())
}

func TestPreservedQuery(t *testing.T) {
	t.Parallel()

	got := PreservedQuery(url.Values{
		"sort":         {"title"},
		"include":      {"authors"},
		"page[number]": {"2"},
		"other":        {"x"},
	})
	assert.Equal(t, url.Values{"sort": {"title"}, "include": {"authors"}}, got)
}
