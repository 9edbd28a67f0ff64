//go:build js && wasm

package main

import (
	"encoding/json"
	"strings"
	"syscall/js"

	"visearch/internal/adapter/normalize"
	"visearch/internal/adapter/ranker"
	"visearch/internal/adapter/refstore"
)

var set *refstore.ReferenceSet

func main() {
	c := make(chan struct{})

	js.Global().Set("visearchLoad", js.FuncOf(loadReferences))
	js.Global().Set("visearchRank", js.FuncOf(rankEmbedding))
	js.Global().Set("visearchCrop", js.FuncOf(cropRect))
	js.Global().Set("visearchClear", js.FuncOf(clearReferences))
	js.Global().Set("visearchStats", js.FuncOf(getStats))

	<-c
}

func loadReferences(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: visearchLoad(json, [dimension])")
	}

	dim := 0
	if len(args) > 1 {
		dim = args[1].Int()
	}

	loaded, err := refstore.Parse(strings.NewReader(args[0].String()), dim)
	if err != nil {
		return makeError("load failed: " + err.Error())
	}
	set = loaded

	return makeResult(map[string]interface{}{
		"success":   true,
		"records":   set.Len(),
		"dimension": set.Dimension(),
	})
}

func rankEmbedding(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: visearchRank(embedding, [topK])")
	}
	if set == nil {
		return makeError("no reference data loaded")
	}

	topK := 5
	if len(args) > 1 {
		topK = args[1].Int()
	}

	query := make([]float32, args[0].Length())
	for i := range query {
		query[i] = float32(args[0].Index(i).Float())
	}

	results, err := ranker.Rank(query, set.Records(), topK)
	if err != nil {
		return makeError("rank failed: " + err.Error())
	}

	output := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		output = append(output, map[string]interface{}{
			"code":    r.Code,
			"score":   r.Score,
			"percent": r.Percent(),
		})
	}

	return makeResult(map[string]interface{}{
		"results": output,
	})
}

func cropRect(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: visearchCrop(width, height)")
	}

	crop, err := normalize.CropRect(args[0].Int(), args[1].Int())
	if err != nil {
		return makeError(err.Error())
	}

	return makeResult(map[string]interface{}{
		"x":    crop.X,
		"y":    crop.Y,
		"size": crop.Size,
		"out":  normalize.OutputSize,
	})
}

func clearReferences(this js.Value, args []js.Value) interface{} {
	set = nil
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	if set == nil {
		return makeResult(map[string]interface{}{
			"records": 0,
		})
	}

	stats := set.Stats()
	return makeResult(map[string]interface{}{
		"records":    stats.Records,
		"dimension":  stats.Dimension,
		"duplicates": stats.Duplicates,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
