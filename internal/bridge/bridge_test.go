package bridge

import "testing"

func TestSubjects(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{entrySubject("boardroom"), "deepfish.entry.boardroom"},
		{entrySubject("scope.with.dots"), "deepfish.entry.scope_with_dots"},
		{memoSubject("it"), "deepfish.memo.it"},
		{toolSubject("mei", "delegate_task"), "deepfish.tool.mei.delegate_task"},
		{toolSubject("", "x"), "deepfish.tool.unknown.x"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"plain":      "plain",
		"has space":  "has_space",
		"wild*card>": "wild_card_",
		"":           "unknown",
	}
	for in, want := range cases {
		if got := sanitizeToken(in); got != want {
			t.Errorf("sanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}
