package extract

import "testing"

func TestCollapseRepetition(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"drink cola okay drink cola okay":                 "drink cola okay",
		"drink cola okaydrink cola okay":                  "drink cola okay",
		"run tests\nrun tests\nrun tests":                 "run tests",
		"do the thing once":                               "do the thing once",
		"drink cola okay drink cola okay!":                "drink cola okay drink cola okay!",
		"make build make test":                            "make build make test",
		"a":                                               "a",
		"":                                                "",
		"  padded padded  ":                               "padded",
		"check logs then check logs again":                "check logs then check logs again",
	}
	for input, want := range cases {
		if got := CollapseRepetition(input); got != want {
			t.Fatalf("CollapseRepetition(%q) = %q, want %q", input, got, want)
		}
	}
}
