package safety

import "testing"

func TestStripCodeFence(t *testing.T) {
	const payload = `{"flagLevel":"green"}`
	tests := []struct {
		name  string
		input string
	}{
		{name: "no fence", input: payload},
		{name: "json tagged fence", input: "```json\n" + payload + "\n```"},
		{name: "upper json tag", input: "```JSON\n" + payload + "\n```"},
		{name: "bare fence", input: "```\n" + payload + "\n```"},
		{name: "jsonc tagged fence", input: "```jsonc\n" + payload + "\n```"},
		{name: "jsonl tagged fence", input: "```jsonl\n" + payload + "\n```"},
		{name: "spaced tag", input: "``` json\n" + payload + "\n```"},
		{name: "other language tag", input: "```application/json\n" + payload + "\n```"},
		{name: "single line fence", input: "```json" + payload + "```"},
		{name: "surrounding whitespace", input: "\n\n  ```json\n" + payload + "\n```  \n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripCodeFence(tc.input); got != payload {
				t.Fatalf("StripCodeFence(%q) = %q", tc.input, got)
			}
		})
	}
}

func TestStripCodeFenceIdempotent(t *testing.T) {
	inputs := []string{
		`{"a":1}`,
		"```json\n{\"a\":1}\n```",
		"```\n{\"a\":1}\n```",
		"not json at all",
	}
	for _, input := range inputs {
		once := StripCodeFence(input)
		if twice := StripCodeFence(once); twice != once {
			t.Fatalf("not idempotent for %q: %q vs %q", input, once, twice)
		}
	}
}

func TestFencedPayloadParsesLikeBare(t *testing.T) {
	const payload = `{"isAllowed":false,"flagLevel":"red","flagReasons":["manipulation"],"parentNotify":true,"explanation":"override"}`
	bare, err := ParseVerdict(payload)
	if err != nil {
		t.Fatalf("bare parse: %v", err)
	}
	fenced, err := ParseVerdict("```json\n" + payload + "\n```")
	if err != nil {
		t.Fatalf("fenced parse: %v", err)
	}
	if bare.Result.FlagLevel != fenced.Result.FlagLevel ||
		bare.Result.IsAllowed != fenced.Result.IsAllowed ||
		bare.Result.ParentNotify != fenced.Result.ParentNotify ||
		bare.Explanation != fenced.Explanation ||
		len(bare.Result.FlagReasons) != len(fenced.Result.FlagReasons) {
		t.Fatalf("fenced parse differs: %+v vs %+v", bare, fenced)
	}
}
