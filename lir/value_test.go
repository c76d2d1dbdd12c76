package lir

import "testing"

func TestValueUseAssignProtocol(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "assign_attaches_to_target",
			run: func(t *testing.T) {
				v := NewValue(KindGeneric)
				u := NewValueUse(nil)

				u.Assign(v)

				if u.Target() != v {
					t.Fatalf("Target() = %p, want %p", u.Target(), v)
				}

				if !v.HasUses() {
					t.Fatal("HasUses() = false after Assign")
				}

				if got := v.Uses(); len(got) != 1 || got[0] != u {
					t.Fatalf("Uses() = %v, want [%p]", got, u)
				}
			},
		},
		{
			name: "reassign_detaches_from_old_target",
			run: func(t *testing.T) {
				a := NewValue(KindGeneric)
				b := NewValue(KindGeneric)
				u := NewValueUse(nil)

				u.Assign(a)
				u.Assign(b)

				if a.HasUses() {
					t.Fatal("old target still has uses after reassignment")
				}

				if u.Target() != b {
					t.Fatalf("Target() = %p, want %p", u.Target(), b)
				}

				if got := b.Uses(); len(got) != 1 || got[0] != u {
					t.Fatalf("Uses() = %v, want [%p]", got, u)
				}
			},
		},
		{
			name: "assign_nil_detaches",
			run: func(t *testing.T) {
				v := NewValue(KindGeneric)
				u := NewValueUse(nil)

				u.Assign(v)
				u.Assign(nil)

				if u.Target() != nil {
					t.Fatalf("Target() = %p, want nil", u.Target())
				}

				if v.HasUses() {
					t.Fatal("HasUses() = true after detaching only use")
				}
			},
		},
		{
			name: "multiple_uses_preserve_order",
			run: func(t *testing.T) {
				v := NewValue(KindGeneric)
				u1 := NewValueUse(nil)
				u2 := NewValueUse(nil)
				u3 := NewValueUse(nil)

				u1.Assign(v)
				u2.Assign(v)
				u3.Assign(v)

				got := v.Uses()
				want := []*ValueUse{u1, u2, u3}

				if len(got) != len(want) {
					t.Fatalf("Uses() len = %d, want %d", len(got), len(want))
				}

				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("Uses()[%d] = %p, want %p", i, got[i], want[i])
					}
				}
			},
		},
		{
			name: "detach_middle_use_preserves_neighbors",
			run: func(t *testing.T) {
				v := NewValue(KindGeneric)
				u1 := NewValueUse(nil)
				u2 := NewValueUse(nil)
				u3 := NewValueUse(nil)

				u1.Assign(v)
				u2.Assign(v)
				u3.Assign(v)

				u2.Assign(nil)

				got := v.Uses()
				want := []*ValueUse{u1, u3}

				if len(got) != len(want) {
					t.Fatalf("Uses() len = %d, want %d", len(got), len(want))
				}

				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("Uses()[%d] = %p, want %p", i, got[i], want[i])
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestReplaceAllUses(t *testing.T) {
	t.Run("moves_every_use_and_empties_source", func(t *testing.T) {
		a := NewValue(KindGeneric)
		b := NewValue(KindGeneric)

		u1 := NewValueUse(nil)
		u2 := NewValueUse(nil)
		u1.Assign(a)
		u2.Assign(a)

		ReplaceAllUses(a, b)

		if a.HasUses() {
			t.Fatal("self still has uses after ReplaceAllUses")
		}

		got := b.Uses()
		if len(got) != 2 || got[0] != u1 || got[1] != u2 {
			t.Fatalf("Uses() = %v, want [%p %p]", got, u1, u2)
		}

		if u1.Target() != b || u2.Target() != b {
			t.Fatal("use target not updated to other")
		}
	})

	t.Run("appends_after_others_existing_uses", func(t *testing.T) {
		a := NewValue(KindGeneric)
		b := NewValue(KindGeneric)

		existing := NewValueUse(nil)
		existing.Assign(b)

		moved := NewValueUse(nil)
		moved.Assign(a)

		ReplaceAllUses(a, b)

		got := b.Uses()
		if len(got) != 2 || got[0] != existing || got[1] != moved {
			t.Fatalf("Uses() = %v, want [%p %p]", got, existing, moved)
		}
	})

	t.Run("self_replace_is_a_no_op", func(t *testing.T) {
		a := NewValue(KindGeneric)
		u := NewValueUse(nil)
		u.Assign(a)

		ReplaceAllUses(a, a)

		if got := a.Uses(); len(got) != 1 || got[0] != u {
			t.Fatalf("Uses() = %v, want [%p]", got, u)
		}
	})

	t.Run("no_uses_is_a_no_op", func(t *testing.T) {
		a := NewValue(KindGeneric)
		b := NewValue(KindGeneric)

		ReplaceAllUses(a, b)

		if a.HasUses() || b.HasUses() {
			t.Fatal("ReplaceAllUses on an unused value created uses out of nowhere")
		}
	})
}

func TestValueOrigin(t *testing.T) {
	t.Run("unset_returns_nil", func(t *testing.T) {
		var o ValueOrigin
		if o.Get() != nil {
			t.Fatal("Get() on unset origin should be nil")
		}
	})

	t.Run("set_then_get_roundtrips", func(t *testing.T) {
		var o ValueOrigin
		v := NewValue(KindModeM)
		o.Set(v)

		if o.Get() != v {
			t.Fatalf("Get() = %p, want %p", o.Get(), v)
		}
	})
}

func TestValueRegister(t *testing.T) {
	v := NewValue(KindModeM)

	if v.Register() != -1 {
		t.Fatalf("Register() = %d, want -1 before allocation", v.Register())
	}

	v.SetRegister(3)

	if v.Register() != 3 {
		t.Fatalf("Register() = %d, want 3", v.Register())
	}
}
