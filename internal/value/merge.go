package value

// sectionsKey names the one list that merges element-wise by name
// instead of being replaced wholesale.
const sectionsKey = "sections"

// DeepMerge merges src into dst in place. Nested maps merge
// recursively; scalars and sequences from src overwrite dst, except a
// "sections" list, whose elements merge by their "name" field (matching
// elements deep-merge, new names append). Later sources win.
func DeepMerge(dst, src *Map) {
	src.Range(func(key string, sv any) bool {
		dv, ok := dst.Get(key)
		if !ok {
			dst.Set(key, Clone(sv))
			return true
		}
		sm, sIsMap := AsMap(sv)
		dm, dIsMap := AsMap(dv)
		if sIsMap && dIsMap {
			DeepMerge(dm, sm)
			return true
		}
		ss, sIsSeq := AsSlice(sv)
		ds, dIsSeq := AsSlice(dv)
		if sIsSeq && dIsSeq && key == sectionsKey {
			dst.Set(key, mergeSections(ds, ss))
			return true
		}
		dst.Set(key, Clone(sv))
		return true
	})
}

func mergeSections(dst, src []any) []any {
	out := make([]any, len(dst))
	copy(out, dst)
	for _, sv := range src {
		sm, ok := AsMap(sv)
		if !ok {
			out = append(out, Clone(sv))
			continue
		}
		name, _ := sm.Get("name")
		idx := -1
		if name != nil {
			for i, dv := range out {
				dm, isMap := AsMap(dv)
				if !isMap {
					continue
				}
				if dn, _ := dm.Get("name"); dn == name {
					idx = i
					break
				}
			}
		}
		if idx >= 0 {
			merged := out[idx].(*Map).Clone()
			DeepMerge(merged, sm)
			out[idx] = merged
		} else {
			out = append(out, Clone(sv))
		}
	}
	return out
}
