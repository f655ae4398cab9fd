package tableaux

// depSet is the sorted set of choice-point levels a fact depends on. Values
// are immutable; every operation returns a new slice or one of its inputs.
type depSet []int32

func (d depSet) has(level int32) bool {
	for _, l := range d {
		if l == level {
			return true
		}
		if l > level {
			return false
		}
	}
	return false
}

func (d depSet) union(o depSet) depSet {
	if len(o) == 0 {
		return d
	}
	if len(d) == 0 {
		return o
	}
	out := make(depSet, 0, len(d)+len(o))
	i, j := 0, 0
	for i < len(d) && j < len(o) {
		switch {
		case d[i] < o[j]:
			out = append(out, d[i])
			i++
		case d[i] > o[j]:
			out = append(out, o[j])
			j++
		default:
			out = append(out, d[i])
			i++
			j++
		}
	}
	out = append(out, d[i:]...)
	return append(out, o[j:]...)
}

func (d depSet) with(level int32) depSet {
	if d.has(level) {
		return d
	}
	return d.union(depSet{level})
}

func (d depSet) without(level int32) depSet {
	if !d.has(level) {
		return d
	}
	out := make(depSet, 0, len(d)-1)
	for _, l := range d {
		if l != level {
			out = append(out, l)
		}
	}
	return out
}

func (d depSet) max() int32 {
	if len(d) == 0 {
		return 0
	}
	return d[len(d)-1]
}
