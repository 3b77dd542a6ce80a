// Package rdf はRDFドキュメントの検証機能を提供する。
// パース自体は外部ライブラリ（knakk/rdf）に委譲し、本パッケージは
// 「保存前にTurtleとして解析可能か」の判定だけを担う。
package rdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/knakk/rdf"
)

// TurtleParserService はTurtle検証のインターフェース。
// グラフストアが保存前の検証に使用する。
type TurtleParserService interface {
	// Validate はcontentをTurtleドキュメントとして解析し、
	// 解析できない場合はエラーを返す。トリプルは保持しない。
	Validate(content []byte) error
}

// TurtleParser はknakk/rdfを使用したTurtleParserServiceの実装。
type TurtleParser struct{}

// NewTurtleParser はTurtleParserを生成する。
func NewTurtleParser() *TurtleParser {
	return &TurtleParser{}
}

// Validate はcontent全体をTurtleとしてデコードする。
// トリプルを持たない空ドキュメントも有効なTurtleとして受け入れる。
func (p *TurtleParser) Validate(content []byte) error {
	dec := rdf.NewTripleDecoder(bytes.NewReader(content), rdf.Turtle)
	for {
		_, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("turtle parse error: %w", err)
		}
	}
}
