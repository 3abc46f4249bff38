package api

// Field names that can never be written through the API, regardless of
// configuration: the identifier and the store-managed timestamps.
var forcedWriteExclusions = []string{"ID", "Created", "LastEdited"}

// ReadableFields resolves the ordered set of fields exposed in views. An
// explicit allow-list wins; otherwise the set derives from the declared
// attributes plus relation keys, honoring the has-one/plural include flags.
// Exclusions always win over inclusions. Pure for a fixed schema.
func (s *Schema) ReadableFields() []string {
	if len(s.Options.ReadFields) > 0 {
		return subtract(s.Options.ReadFields, s.Options.ExcludeReadFields)
	}

	var fields []string
	for _, f := range s.Fields {
		fields = append(fields, f.Name)
	}
	for _, rel := range s.Relations {
		if rel.Plural {
			if s.Options.IncludePlural {
				fields = append(fields, rel.Name)
			}
			continue
		}
		if !s.Options.SkipHasOne {
			fields = append(fields, rel.Name, rel.Name+"ID")
		}
	}
	return subtract(dedupe(fields), s.Options.ExcludeReadFields)
}

// WritableFields resolves the ordered set of fields the API may assign. The
// result is always a subset of the declared attributes and single-valued
// relation names, and never contains the identifier or timestamp fields.
func (s *Schema) WritableFields() []string {
	var candidates []string
	if len(s.Options.WriteFields) > 0 {
		for _, name := range s.Options.WriteFields {
			if s.isDeclaredWritable(name) {
				candidates = append(candidates, name)
			}
		}
	} else {
		for _, f := range s.Fields {
			candidates = append(candidates, f.Name)
		}
		for _, rel := range s.Relations {
			if !rel.Plural {
				candidates = append(candidates, rel.Name)
			}
		}
	}
	excluded := append(append([]string{}, s.Options.ExcludeWriteFields...), forcedWriteExclusions...)
	return subtract(dedupe(candidates), excluded)
}

func (s *Schema) isDeclaredWritable(name string) bool {
	if _, ok := s.field(name); ok {
		return true
	}
	if rel, ok := s.relation(name); ok && !rel.Plural {
		return true
	}
	return false
}

func subtract(fields, exclude []string) []string {
	if len(exclude) == 0 {
		return fields
	}
	drop := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		drop[name] = struct{}{}
	}
	out := make([]string, 0, len(fields))
	for _, name := range fields {
		if _, ok := drop[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func dedupe(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, name := range fields {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func contains(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
