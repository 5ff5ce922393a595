package textcrdt

// Diff computes a minimal sequence of Insert/Delete operations that
// transforms old into new, via classic O(m*n) LCS dynamic programming
// followed by a traceback and a coalescing pass that merges consecutive
// inserts at the same position, and consecutive deletes of adjacent
// runes, into single runs.
//
// The returned ops are expressed in terms of positions in old (each op's
// At is the index of the rune of old it sits before), i.e. they can be
// fed to Apply with a fresh (zero) session, whose rebasing accounts for
// the drift of earlier ops, to reconstruct new from old.
func Diff(old, newer string) []Op {
	a := []rune(old)
	b := []rune(newer)
	m, n := len(a), len(b)

	// dp[i][j] = length of LCS of a[i:] and b[j:]
	dp := make([][]int32, m+1)
	for i := range dp {
		dp[i] = make([]int32, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	type rawOp = struct {
		insert bool
		pos    int // index in old of the next unconsumed rune
		ch     rune
	}
	var raw []rawOp

	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			raw = append(raw, rawOp{insert: false, pos: i})
			i++
		default:
			raw = append(raw, rawOp{insert: true, pos: i, ch: b[j]})
			j++
		}
	}
	for ; i < m; i++ {
		raw = append(raw, rawOp{insert: false, pos: i})
	}
	for ; j < n; j++ {
		raw = append(raw, rawOp{insert: true, pos: i, ch: b[j]})
	}

	return coalesce(raw)
}

type coalesceRaw = struct {
	insert bool
	pos    int
	ch     rune
}

func coalesce(raw []coalesceRaw) []Op {
	var ops []Op
	i := 0
	for i < len(raw) {
		cur := raw[i]
		j := i + 1
		if cur.insert {
			text := []rune{cur.ch}
			for j < len(raw) && raw[j].insert && raw[j].pos == cur.pos {
				text = append(text, raw[j].ch)
				j++
			}
			ops = append(ops, Ins(cur.pos, string(text)))
		} else {
			length := 1
			for j < len(raw) && !raw[j].insert && raw[j].pos == cur.pos+length {
				length++
				j++
			}
			ops = append(ops, Del(cur.pos, length))
		}
		i = j
	}
	return ops
}
