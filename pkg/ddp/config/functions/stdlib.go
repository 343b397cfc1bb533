// Package functions provides the HCL functions available to configuration
// expressions.
package functions

import (
	"maps"

	"github.com/hashicorp/go-cty-funcs/crypto"
	"github.com/hashicorp/go-cty-funcs/encoding"
	"github.com/hashicorp/go-cty-funcs/filesystem"
	"github.com/hashicorp/go-cty-funcs/uuid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

var stringFunctions = map[string]function.Function{
	"upper":     stdlib.UpperFunc,
	"lower":     stdlib.LowerFunc,
	"title":     stdlib.TitleFunc,
	"substr":    stdlib.SubstrFunc,
	"strlen":    stdlib.StrlenFunc,
	"split":     stdlib.SplitFunc,
	"join":      stdlib.JoinFunc,
	"chomp":     stdlib.ChompFunc,
	"indent":    stdlib.IndentFunc,
	"trim":      stdlib.TrimFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"replace":   stdlib.ReplaceFunc,
	"regex":     stdlib.RegexFunc,
	"regexall":  stdlib.RegexAllFunc,
	"format":    stdlib.FormatFunc,
}

var numericFunctions = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"ceil":   stdlib.CeilFunc,
	"floor":  stdlib.FloorFunc,
	"log":    stdlib.LogFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"pow":    stdlib.PowFunc,
	"signum": stdlib.SignumFunc,
}

var collectionFunctions = map[string]function.Function{
	"element":      stdlib.ElementFunc,
	"length":       stdlib.LengthFunc,
	"coalesce":     stdlib.CoalesceFunc,
	"coalescelist": stdlib.CoalesceListFunc,
	"compact":      stdlib.CompactFunc,
	"contains":     stdlib.ContainsFunc,
	"distinct":     stdlib.DistinctFunc,
	"flatten":      stdlib.FlattenFunc,
	"keys":         stdlib.KeysFunc,
	"values":       stdlib.ValuesFunc,
	"lookup":       stdlib.LookupFunc,
	"merge":        stdlib.MergeFunc,
	"range":        stdlib.RangeFunc,
	"reverse":      stdlib.ReverseFunc,
	"slice":        stdlib.SliceFunc,
	"sort":         stdlib.SortFunc,
	"zipmap":       stdlib.ZipmapFunc,
}

var conversionFunctions = map[string]function.Function{
	"csvdecode":  stdlib.CSVDecodeFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"jsonencode": stdlib.JSONEncodeFunc,
	"formatdate": stdlib.FormatDateFunc,
	"timeadd":    stdlib.TimeAddFunc,
	"tostring":   stdlib.MakeToFunc(cty.String),
	"tonumber":   stdlib.MakeToFunc(cty.Number),
	"tobool":     stdlib.MakeToFunc(cty.Bool),
	"tolist":     stdlib.MakeToFunc(cty.List(cty.DynamicPseudoType)),
	"tomap":      stdlib.MakeToFunc(cty.Map(cty.DynamicPseudoType)),
	"toset":      stdlib.MakeToFunc(cty.Set(cty.DynamicPseudoType)),
}

// go-cty-funcs additions
var extraFunctions = map[string]function.Function{
	"md5":          crypto.Md5Func,
	"sha1":         crypto.Sha1Func,
	"sha256":       crypto.Sha256Func,
	"sha512":       crypto.Sha512Func,
	"base64decode": encoding.Base64DecodeFunc,
	"base64encode": encoding.Base64EncodeFunc,
	"urlencode":    encoding.URLEncodeFunc,
	"abspath":      filesystem.AbsPathFunc,
	"basename":     filesystem.BasenameFunc,
	"dirname":      filesystem.DirnameFunc,
	"pathexpand":   filesystem.PathExpandFunc,
	"uuidv4":       uuid.V4Func,
	"uuidv5":       uuid.V5Func,
}

// GetStandardLibraryFunctions returns a fresh map of the cty standard
// library and go-cty-funcs functions.
func GetStandardLibraryFunctions() map[string]function.Function {
	funcs := make(map[string]function.Function)
	for _, group := range []map[string]function.Function{
		stringFunctions,
		numericFunctions,
		collectionFunctions,
		conversionFunctions,
		extraFunctions,
	} {
		maps.Copy(funcs, group)
	}

	funcs["typeof"] = TypeOfFunc
	funcs["error"] = ErrorFunc
	funcs["diff"] = DiffFunc
	funcs["patch"] = PatchFunc
	funcs["jq"] = JqFunc

	return funcs
}
