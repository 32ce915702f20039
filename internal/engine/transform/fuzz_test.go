package transform

import (
	"testing"

	"scriptlib/internal/engine/rewrite"
)

func FuzzForward(f *testing.F) {
	f.Add("from pkg.mod import foo\nfoo()\n")
	f.Add("import pkg.a as b\ns = '''\nb\n'''\nb.c")
	f.Add("x = \"pkg\"  # pkg\n\tpass")
	e := newEngine(rewrite.StrategySubstitute, "pkg")
	f.Fuzz(func(t *testing.T, src string) {
		res, err := e.Forward("fuzz.py", src)
		if err != nil {
			return
		}
		if !res.Reversible {
			return
		}
		back, err := e.Inverse("fuzz.py", res.Text, rewrite.StrategySubstitute)
		if err != nil {
			t.Fatalf("inverse of reversible output failed: %v", err)
		}
		if res.Text == src {
			// already in host form: the inverse has to convert forward again
			again, err := e.Forward("fuzz.py", back.Text)
			if err != nil || again.Text != src {
				t.Fatalf("host-form input %q not stable across inverse and forward", src)
			}
			return
		}
		if back.Text != src {
			t.Fatalf("round trip mismatch for %q", src)
		}
	})
}
