package filter

import "testing"

func TestShouldSuppress(t *testing.T) {
	t.Parallel()

	f := New("!.", []string{"spam", "eggs"})

	cases := []struct {
		name string
		text string
		want bool
	}{
		{name: "plain", text: "hello there", want: false},
		{name: "empty", text: "", want: false},
		{name: "bang command", text: "!help", want: true},
		{name: "dot command", text: ".seen bob", want: true},
		{name: "filter char later", text: "hi !help", want: false},
		{name: "banned token", text: "buy spam now", want: true},
		{name: "banned token alone", text: "eggs", want: true},
		{name: "banned substring only", text: "spammy stuff", want: false},
		{name: "banned wrong case", text: "SPAM", want: false},
		{name: "banned across tabs", text: "a\tspam\nb", want: true},
		{name: "leading space before char", text: " !help", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := f.ShouldSuppress(tc.text, "bob"); got != tc.want {
				t.Fatalf("ShouldSuppress(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestShouldSuppressMultibytePrefix(t *testing.T) {
	t.Parallel()

	f := New("€", nil)
	if !f.ShouldSuppress("€price", "bob") {
		t.Fatal("expected multibyte filter char to suppress")
	}
	if f.ShouldSuppress("price €", "bob") {
		t.Fatal("expected non-leading multibyte char to pass")
	}
}

func TestEmptyFilterPassesEverything(t *testing.T) {
	t.Parallel()

	f := New("", []string{""})
	for _, text := range []string{"", "!cmd", "anything at all"} {
		if f.ShouldSuppress(text, "bob") {
			t.Fatalf("ShouldSuppress(%q) = true with empty config", text)
		}
	}
}
