package contract

// OutputMap: 有序的 输出标识→内容 映射，是切分与写出之间的交接物。
// 插入顺序为首次定稿的顺序；同一标识再次定稿时原位替换内容。
// 零值不可用，使用 NewOutputMap 构造。
type OutputMap struct {
	sections []Section
	index    map[ArtifactID]int
}

// NewOutputMap 创建空映射。
func NewOutputMap() *OutputMap {
	return &OutputMap{index: map[ArtifactID]int{}}
}

// Set 写入（或原位替换）一个分段。
func (m *OutputMap) Set(id ArtifactID, content string) {
	if i, ok := m.index[id]; ok {
		m.sections[i].Content = content
		return
	}
	m.index[id] = len(m.sections)
	m.sections = append(m.sections, Section{ID: id, Content: content})
}

// Get 返回标识对应内容；未命中的标识不存在（而非空串）。
func (m *OutputMap) Get(id ArtifactID) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[id]
	if !ok {
		return "", false
	}
	return m.sections[i].Content, true
}

// Len 返回分段数量；nil 视为空。
func (m *OutputMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sections)
}

// Sections 按顺序返回分段副本。
func (m *OutputMap) Sections() []Section {
	if m == nil || len(m.sections) == 0 {
		return nil
	}
	out := make([]Section, len(m.sections))
	copy(out, m.sections)
	return out
}

// IDs 按顺序返回全部标识。
func (m *OutputMap) IDs() []ArtifactID {
	if m == nil {
		return nil
	}
	out := make([]ArtifactID, 0, len(m.sections))
	for _, s := range m.sections {
		out = append(out, s.ID)
	}
	return out
}
