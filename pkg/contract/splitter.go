package contract

// Splitter: 将原始文本按有序标记表切分为 OutputMap。
// 约束：
//  1. 单次线性扫描，仅在行边界切分；
//  2. 先注册的标记优先（首个包含匹配即停止）；
//  3. 标记行本身不进入任何分段；首个标记之前的内容丢弃；
//  4. 缓冲为空的分段不入表；
//  5. 纯计算、无 I/O、不报错，无命中以更小的映射表示。
type Splitter interface {
	Split(text string, reg Registry) *OutputMap
}
