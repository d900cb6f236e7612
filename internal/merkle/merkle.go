package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Tree 确定性二叉Merkle树
// 叶子顺序由调用方固定，同样的叶子序列总是得到同样的根
// 奇数层末尾节点与自身配对
type Tree struct {
	levels [][][]byte
}

var ErrEmptyTree = errors.New("merkle: no leaves")
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

func NewTree(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = append([]byte(nil), leaf...)
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

func (t *Tree) Root() []byte {
	root := t.levels[len(t.levels)-1][0]
	return append([]byte(nil), root...)
}

func (t *Tree) RootHex() string {
	return hex.EncodeToString(t.Root())
}

func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// ProofStep 证明路径上的一个兄弟节点
// Right为true表示兄弟在右侧
type ProofStep struct {
	Hash  []byte
	Right bool
}

// Proof 生成指定叶子的包含性证明
func (t *Tree) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, ErrIndexOutOfRange
	}

	var proof []ProofStep
	for _, level := range t.levels[:len(t.levels)-1] {
		var sibling []byte
		right := index%2 == 0
		if right {
			if index+1 < len(level) {
				sibling = level[index+1]
			} else {
				sibling = level[index]
			}
		} else {
			sibling = level[index-1]
		}
		proof = append(proof, ProofStep{
			Hash:  append([]byte(nil), sibling...),
			Right: right,
		})
		index /= 2
	}

	return proof, nil
}

// Verify 用证明路径从叶子重算根并比对
func Verify(leaf []byte, proof []ProofStep, root []byte) bool {
	current := leaf
	for _, step := range proof {
		if step.Right {
			current = hashPair(current, step.Hash)
		} else {
			current = hashPair(step.Hash, current)
		}
	}

	if len(current) != len(root) {
		return false
	}
	for i := range current {
		if current[i] != root[i] {
			return false
		}
	}
	return true
}

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
