package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ===============================
// JSON 结构校验
// ===============================

// ErrMalformedReport 报告或页面返回值结构不符合约定
var ErrMalformedReport = errors.New("malformed document")

// validateJSON 按 schema 校验文档：缺失字段与未知字段都视为错误
func validateJSON(schema string, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedReport, strings.Join(msgs, "; "))
	}
	return nil
}

const vitalsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["paints", "lcp", "layoutShifts", "responseStart"],
  "properties": {
    "paints": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "startTime"],
        "properties": {"name": {"type": "string"}, "startTime": {"type": "number"}}
      }
    },
    "lcp": {"type": "array", "items": {"type": "number"}},
    "layoutShifts": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["value", "hadRecentInput"],
        "properties": {"value": {"type": "number"}, "hadRecentInput": {"type": "boolean"}}
      }
    },
    "responseStart": {"type": "number"}
  }
}`

const resourcesSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["name", "initiatorType", "transferSize", "decodedBodySize", "duration"],
    "properties": {
      "name": {"type": "string"},
      "initiatorType": {"type": "string"},
      "transferSize": {"type": "number", "minimum": 0},
      "decodedBodySize": {"type": "number", "minimum": 0},
      "duration": {"type": "number"}
    }
  }
}`

const measuresSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["measures", "scriptTags"],
  "properties": {
    "measures": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "duration"],
        "properties": {"name": {"type": "string"}, "duration": {"type": "number"}}
      }
    },
    "scriptTags": {"type": "integer", "minimum": 0}
  }
}`

// 统计汇总对象
const summaryDef = `{
  "type": "object",
  "required": ["mean", "median", "stddev", "min", "max", "runs"],
  "properties": {
    "mean": {"type": "number"}, "median": {"type": "number"}, "stddev": {"type": "number"},
    "min": {"type": "number"}, "max": {"type": "number"}, "runs": {"type": "integer", "minimum": 0},
    "ci95Lower": {"type": "number"}, "ci95Upper": {"type": "number"}
  }
}`

// frameworkReportSchema 单框架报告文件的聚合输入约定
var frameworkReportSchema = `{
  "type": "object",
  "required": ["metadata", "results"],
  "definitions": {"summary": ` + summaryDef + `},
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["frameworkName", "runsPerPage"],
      "properties": {
        "frameworkName": {"type": "string", "minLength": 1},
        "runsPerPage": {"type": "integer", "minimum": 1}
      }
    },
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["framework", "page", "cacheMode", "jsTransferred", "jsUncompressed",
                     "totalTransferred", "fcp", "lcp", "cls", "ttfb", "jsToTotalRatio"],
        "properties": {
          "framework": {"type": "string"},
          "page": {"enum": ["home", "board"]},
          "cacheMode": {"enum": ["cold", "warm"]},
          "jsTransferred": {"$ref": "#/definitions/summary"},
          "jsUncompressed": {"$ref": "#/definitions/summary"},
          "totalTransferred": {"$ref": "#/definitions/summary"},
          "fcp": {"$ref": "#/definitions/summary"},
          "lcp": {"$ref": "#/definitions/summary"},
          "cls": {"$ref": "#/definitions/summary"},
          "ttfb": {"$ref": "#/definitions/summary"},
          "jsToTotalRatio": {"type": "integer", "minimum": 0, "maximum": 100}
        }
      }
    }
  }
}`
