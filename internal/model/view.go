// Package model はドメインモデルを定義する。
package model

import "time"

// View はユーザーの保存済みビューを表す。
// (Username, SeriesName)の組がシリーズを構成し、シリーズ内のビューは
// Timestamp順の追記専用の列になる。既存の行が上書きされることはない。
// Timestampはストアが付与するサーバー時刻で、クライアントからは受け取らない。
type View struct {
	ID         string
	Username   string
	SeriesName string
	GraphID    string
	Transforms []Transform
	Timestamp  time.Time
}

// Transform はグラフに適用するフィルタ/クエリの記述子を表す。
// 内容は不透明で、構造（4フィールドの完全一致）のみを検証する。
type Transform struct {
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Enabled bool           `json:"enabled"`
	Params  map[string]any `json:"params"`
}

// SeriesInfo はユーザーのシリーズ一覧の1エントリを表す。
type SeriesInfo struct {
	SeriesName   string
	VersionCount int
	LatestAt     time.Time
}
