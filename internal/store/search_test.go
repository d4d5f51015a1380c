package store

import "testing"

func TestBuildSearchConditionEmpty(t *testing.T) {
	if sc := buildSearchCondition(""); sc != nil {
		t.Fatalf("empty search produced %+v", sc)
	}
	if sc := buildSearchCondition("   "); sc != nil {
		t.Fatalf("blank search produced %+v", sc)
	}
}

func TestBuildSearchConditionTokens(t *testing.T) {
	sc := buildSearchCondition("alpha beta")
	if sc == nil {
		t.Fatal("nil condition for token search")
	}
	// Two tokens, three columns each.
	if len(sc.args) != 6 {
		t.Fatalf("args = %d, want 6", len(sc.args))
	}
	if sc.args[0] != "%alpha%" || sc.args[3] != "%beta%" {
		t.Fatalf("unexpected args %v", sc.args)
	}
}

func TestBuildSearchConditionOrKeyword(t *testing.T) {
	sc := buildSearchCondition("alpha OR beta")
	if sc == nil {
		t.Fatal("nil condition for OR search")
	}
	if len(sc.args) != 6 {
		t.Fatalf("args = %d, want 6", len(sc.args))
	}

	// Lowercase "or" splits too; a bare token does not.
	if sc := buildSearchCondition("alpha or beta"); len(sc.args) != 6 {
		t.Fatalf("case-insensitive OR args = %d, want 6", len(sc.args))
	}
	if sc := buildSearchCondition("order"); len(sc.args) != 3 {
		t.Fatalf("word containing 'or' split incorrectly, args = %d", len(sc.args))
	}
}

func TestBuildSearchConditionAttachmentShortcut(t *testing.T) {
	sc := buildSearchCondition("添付")
	if sc == nil || len(sc.args) != 0 {
		t.Fatalf("attachment shortcut produced %+v", sc)
	}
}
