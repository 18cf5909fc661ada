package entity

import "testing"

func TestParseUID_RoundTrips(t *testing.T) {
	uids := []UID{
		NewUID("User", "alice"),
		NewUID("Photo", "vacation.jpg"),
		NewUID("Namespace::Photo", "nested"),
		NewUID("Doc", `with "quotes" inside`),
		NewUID("Doc", `trailing backslash \`),
		NewUID("Doc", ""),
	}
	for _, uid := range uids {
		got, err := ParseUID(uid.String())
		if err != nil {
			t.Errorf("ParseUID(%q): %v", uid.String(), err)
			continue
		}
		if got != uid {
			t.Errorf("ParseUID(%q) = %+v, want %+v", uid.String(), got, uid)
		}
	}
}

func TestParseUID_RejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"User",
		`User::alice`,
		`::"alice"`,
		`User::"alice`,
		`User::"ali"ce"`,
		`User::"alice\"`,
	}
	for _, in := range inputs {
		if _, err := ParseUID(in); err == nil {
			t.Errorf("ParseUID(%q): want error, got nil", in)
		}
	}
}

func TestUID_String(t *testing.T) {
	if got, want := NewUID("User", "alice").String(), `User::"alice"`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := NewUID("Doc", `a"b`).String(), `Doc::"a\"b"`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
