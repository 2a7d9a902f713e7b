package sqldsl

import "testing"

func TestFormatter(t *testing.T) {
	tests := []struct {
		name   string
		build  func(f *Formatter)
		expect string
	}{
		{
			name: "single line",
			build: func(f *Formatter) {
				f.Write("SELECT ")
				f.Write("1")
			},
			expect: "SELECT 1",
		},
		{
			name: "write line breaks first",
			build: func(f *Formatter) {
				f.Write("SELECT")
				f.WriteLine("FROM users")
			},
			expect: "SELECT\nFROM users",
		},
		{
			name: "indent applies to new lines",
			build: func(f *Formatter) {
				f.Write("SELECT")
				f.Indent()
				f.WriteLine("a")
				f.Dedent()
				f.WriteLine("FROM t")
			},
			expect: "SELECT\n  a\nFROM t",
		},
		{
			name: "break on empty line is a no-op",
			build: func(f *Formatter) {
				f.Break()
				f.Write("a")
				f.Break()
				f.Break()
				f.Write("b")
			},
			expect: "a\nb",
		},
		{
			name: "dedent never goes negative",
			build: func(f *Formatter) {
				f.Dedent()
				f.Write("a")
			},
			expect: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFormatter()
			tt.build(f)
			if got := f.String(); got != tt.expect {
				t.Errorf("Formatter.String() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestFormatterJoin(t *testing.T) {
	items := []string{"a", "b", "c"}

	f := NewFormatter()
	f.JoinInline(len(items), ", ", func(i int) { f.Write(items[i]) })
	if got := f.String(); got != "a, b, c" {
		t.Errorf("JoinInline = %q, want %q", got, "a, b, c")
	}

	f = NewFormatter()
	f.Write("SELECT")
	f.Indent()
	f.JoinLines(len(items), ",", func(i int) { f.Write(items[i]) })
	f.Dedent()
	if got, want := f.String(), "SELECT\n  a,\n  b,\n  c"; got != want {
		t.Errorf("JoinLines = %q, want %q", got, want)
	}
}

func TestFormatterStringDoesNotMutate(t *testing.T) {
	f := NewFormatter()
	f.Write("a")
	_ = f.String()
	f.Write("b")
	if got := f.String(); got != "ab" {
		t.Errorf("String() after further writes = %q, want %q", got, "ab")
	}
}
