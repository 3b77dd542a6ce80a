// Package payload はビュー投稿(Bru/Brl)の構造検証を提供する。
// 検証は純粋に構造的（キー集合と型の完全一致）で、params等の意味は検査しない。
// どこか1箇所でも違反があればドキュメント全体をInvalidとして扱う。
package payload

import (
	"encoding/json"

	"github.com/bruplint/bruplint/internal/model"
)

// Kind はペイロードの分類結果を表す。
type Kind string

const (
	// KindBru はグラフ内容をインラインで埋め込んだ投稿。
	KindBru Kind = "bru"
	// KindBrl はグラフをURL参照で指定した投稿。
	KindBrl Kind = "brl"
	// KindInvalid は構造検証に失敗したドキュメント。
	KindInvalid Kind = "invalid"
)

// Classification は構造検証の結果を表す。
// KindがKindInvalidの場合はReasonに不一致の内容が入り、他のフィールドは無効。
type Classification struct {
	Kind       Kind
	Content    map[string]any // Bruの場合の埋め込みコンテンツコンテナ
	URL        string         // Brlの場合のグラフURL
	Transforms []model.Transform
	Reason     string
}

// Classify はデコード済みJSONドキュメントをBru、Brl、Invalidのいずれかに分類する。
// トップレベルは {format, graph, transforms} の3キー完全一致、
// graphは {type: "turtle", content: <object>}（Bru）または
// {type: "turtle", url: <string>}（Brl）の2キー完全一致でなければならない。
func Classify(raw []byte) Classification {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return invalid("JSONとして解析できません")
	}

	top, ok := doc.(map[string]any)
	if !ok {
		return invalid("トップレベルがオブジェクトではありません")
	}
	if len(top) != 3 {
		return invalid("トップレベルはformat、graph、transformsの3キーでなければなりません")
	}

	format, ok := top["format"].(string)
	if !ok {
		return invalid("formatが文字列ではありません")
	}

	graph, ok := top["graph"].(map[string]any)
	if !ok {
		return invalid("graphがオブジェクトではありません")
	}

	rawTransforms, ok := top["transforms"].([]any)
	if !ok {
		return invalid("transformsが配列ではありません")
	}

	transforms, reason := parseTransforms(rawTransforms)
	if reason != "" {
		return invalid(reason)
	}

	switch format {
	case "bru":
		content, reason := parseBruGraph(graph)
		if reason != "" {
			return invalid(reason)
		}
		return Classification{Kind: KindBru, Content: content, Transforms: transforms}
	case "brl":
		url, reason := parseBrlGraph(graph)
		if reason != "" {
			return invalid(reason)
		}
		return Classification{Kind: KindBrl, URL: url, Transforms: transforms}
	default:
		return invalid("formatはbruまたはbrlでなければなりません")
	}
}

// parseBruGraph はBruのgraphオブジェクト（{type: "turtle", content: <object>}）を検証する。
func parseBruGraph(graph map[string]any) (map[string]any, string) {
	if len(graph) != 2 {
		return nil, "Bruのgraphはtypeとcontentの2キーでなければなりません"
	}
	if t, ok := graph["type"].(string); !ok || t != "turtle" {
		return nil, "graph.typeはturtleでなければなりません"
	}
	content, ok := graph["content"].(map[string]any)
	if !ok {
		return nil, "Bruのgraph.contentはオブジェクトでなければなりません"
	}
	return content, ""
}

// parseBrlGraph はBrlのgraphオブジェクト（{type: "turtle", url: <string>}）を検証する。
func parseBrlGraph(graph map[string]any) (string, string) {
	if len(graph) != 2 {
		return "", "Brlのgraphはtypeとurlの2キーでなければなりません"
	}
	if t, ok := graph["type"].(string); !ok || t != "turtle" {
		return "", "graph.typeはturtleでなければなりません"
	}
	url, ok := graph["url"].(string)
	if !ok {
		return "", "Brlのgraph.urlは文字列でなければなりません"
	}
	return url, ""
}

// parseTransforms はtransforms配列の各要素を検証して変換する。
// 各要素は {type: string, name: string, enabled: bool, params: object} の
// 4キー完全一致でなければならず、1つでも違反すればドキュメント全体が無効になる。
func parseTransforms(raw []any) ([]model.Transform, string) {
	transforms := make([]model.Transform, 0, len(raw))
	for _, elem := range raw {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, "transformsの要素がオブジェクトではありません"
		}
		if len(obj) != 4 {
			return nil, "transformはtype、name、enabled、paramsの4キーでなければなりません"
		}

		typ, ok := obj["type"].(string)
		if !ok {
			return nil, "transform.typeが文字列ではありません"
		}
		name, ok := obj["name"].(string)
		if !ok {
			return nil, "transform.nameが文字列ではありません"
		}
		enabled, ok := obj["enabled"].(bool)
		if !ok {
			return nil, "transform.enabledが真偽値ではありません"
		}
		params, ok := obj["params"].(map[string]any)
		if !ok {
			return nil, "transform.paramsがオブジェクトではありません"
		}

		transforms = append(transforms, model.Transform{
			Type:    typ,
			Name:    name,
			Enabled: enabled,
			Params:  params,
		})
	}
	return transforms, ""
}

func invalid(reason string) Classification {
	return Classification{Kind: KindInvalid, Reason: reason}
}
