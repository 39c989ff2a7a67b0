package eval

import (
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// Builtins contains all spreadsheet built-in functions
type Builtins struct {
	clock Clock
	rng   RandomGenerator
}

// NewDefaultBuiltins creates Builtins backed by the wall clock and the
// global random source
func NewDefaultBuiltins() *Builtins {
	return &Builtins{
		clock: WallClock{},
		rng:   DefaultRandomGenerator{},
	}
}

type builtin struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(b *Builtins, args []Arg) cell.Value
}

func (f builtin) accepts(n int) bool {
	return n >= f.minArgs && (f.maxArgs < 0 || n <= f.maxArgs)
}

func (f builtin) call(b *Builtins, args []Arg) cell.Value {
	return f.fn(b, args)
}

var builtinTable map[string]builtin

func init() {
	builtinTable = map[string]builtin{
		"SUM":         {1, -1, (*Builtins).SUM},
		"PRODUCT":     {1, -1, (*Builtins).PRODUCT},
		"AVERAGE":     {1, -1, (*Builtins).AVERAGE},
		"AVERAGEA":    {1, -1, (*Builtins).AVERAGEA},
		"COUNT":       {1, -1, (*Builtins).COUNT},
		"COUNTA":      {1, -1, (*Builtins).COUNTA},
		"COUNTBLANK":  {1, 1, (*Builtins).COUNTBLANK},
		"MAX":         {1, -1, (*Builtins).MAX},
		"MIN":         {1, -1, (*Builtins).MIN},
		"MEDIAN":      {1, -1, (*Builtins).MEDIAN},
		"MODE":        {1, -1, (*Builtins).MODE},
		"IF":          {2, 3, (*Builtins).IF},
		"IFERROR":     {2, 2, (*Builtins).IFERROR},
		"AND":         {1, -1, (*Builtins).AND},
		"OR":          {1, -1, (*Builtins).OR},
		"NOT":         {1, 1, (*Builtins).NOT},
		"TRUE":        {0, 0, func(*Builtins, []Arg) cell.Value { return cell.Bool(true) }},
		"FALSE":       {0, 0, func(*Builtins, []Arg) cell.Value { return cell.Bool(false) }},
		"ISBLANK":     {1, 1, (*Builtins).ISBLANK},
		"ISERROR":     {1, 1, (*Builtins).ISERROR},
		"ISNUMBER":    {1, 1, (*Builtins).ISNUMBER},
		"ISTEXT":      {1, 1, (*Builtins).ISTEXT},
		"CONCATENATE": {1, -1, (*Builtins).CONCATENATE},
		"LEN":         {1, 1, (*Builtins).LEN},
		"UPPER":       {1, 1, (*Builtins).UPPER},
		"LOWER":       {1, 1, (*Builtins).LOWER},
		"PROPER":      {1, 1, (*Builtins).PROPER},
		"TRIM":        {1, 1, (*Builtins).TRIM},
		"LEFT":        {1, 2, (*Builtins).LEFT},
		"RIGHT":       {1, 2, (*Builtins).RIGHT},
		"MID":         {3, 3, (*Builtins).MID},
		"ABS":         {1, 1, (*Builtins).ABS},
		"ROUND":       {1, 2, (*Builtins).ROUND},
		"FLOOR":       {1, 1, (*Builtins).FLOOR},
		"CEILING":     {1, 1, (*Builtins).CEILING},
		"SQRT":        {1, 1, (*Builtins).SQRT},
		"POWER":       {2, 2, (*Builtins).POWER},
		"MOD":         {2, 2, (*Builtins).MOD},
		"PI":          {0, 0, (*Builtins).PI},
		"NOW":         {0, 0, (*Builtins).NOW},
		"TODAY":       {0, 0, (*Builtins).TODAY},
		"RAND":        {0, 0, (*Builtins).RAND},
	}
}

// Call invokes a built-in function by name with already evaluated arguments
func (b *Builtins) Call(name string, args []Arg) cell.Value {
	fn, ok := builtinTable[strings.ToUpper(name)]
	if !ok {
		return cell.Error(cell.ErrorName)
	}
	if !fn.accepts(len(args)) {
		return cell.Error(cell.ErrorValue)
	}
	return fn.call(b, args)
}

// IsBuiltin reports whether name is a known function.
func IsBuiltin(name string) bool {
	_, ok := builtinTable[strings.ToUpper(name)]
	return ok
}

// IsVolatile reports whether a function's result can change without any of
// its inputs changing, so cells calling it recalculate on every pass.
func IsVolatile(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY", "RAND":
		return true
	default:
		return false
	}
}

// numbers gathers the numeric inputs of an aggregate. direct arguments are
// coerced and must be numeric; inside ranges only number cells count.
// the first error met is returned as errv.
func numbers(args []Arg) (nums []float64, errv cell.Value, failed bool) {
	for _, arg := range args {
		for _, v := range arg.Values {
			if v.IsError() {
				return nil, v, true
			}
			if arg.Range {
				if v.Kind() == cell.KindNumber {
					nums = append(nums, v.Num())
				}
				continue
			}
			num, ok := toNumber(v)
			if !ok {
				return nil, cell.Error(cell.ErrorValue), true
			}
			nums = append(nums, num)
		}
	}
	return nums, cell.Value{}, false
}

// scalar collapses an argument to one value. multi-cell ranges are #VALUE!.
func scalar(arg Arg) cell.Value {
	if len(arg.Values) != 1 {
		return cell.Error(cell.ErrorValue)
	}
	return arg.Values[0]
}

func scalarNumber(arg Arg) (float64, cell.Value, bool) {
	v := scalar(arg)
	if v.IsError() {
		return 0, v, false
	}
	num, ok := toNumber(v)
	if !ok {
		return 0, cell.Error(cell.ErrorValue), false
	}
	return num, cell.Value{}, true
}

func scalarText(arg Arg) (string, cell.Value, bool) {
	v := scalar(arg)
	if v.IsError() {
		return "", v, false
	}
	return toText(v), cell.Value{}, true
}

func (b *Builtins) SUM(args []Arg) cell.Value {
	nums, errv, failed := numbers(args)
	if failed {
		return errv
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	// 15 significant digits trims binary noise such as 0.1+0.2
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(sum, 'g', 15, 64), 64)
	return cell.NumberOrError(rounded)
}

func (b *Builtins) PRODUCT(args []Arg) cell.Value {
	nums, errv, failed := numbers(args)
	if failed {
		return errv
	}
	if len(nums) == 0 {
		return cell.Number(0)
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return cell.NumberOrError(product)
}

func (b *Builtins) AVERAGE(args []Arg) cell.Value {
	nums, errv, failed := numbers(args)
	if failed {
		return errv
	}
	if len(nums) == 0 {
		return cell.Error(cell.ErrorDivZero)
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return cell.NumberOrError(sum / float64(len(nums)))
}

func (b *Builtins) AVERAGEA(args []Arg) cell.Value {
	sum := 0.0
	count := 0
	for _, arg := range args {
		for _, v := range arg.Values {
			// AVERAGEA counts every non-empty value; only numbers and
			// booleans contribute to the sum
			switch v.Kind() {
			case cell.KindError:
				return v
			case cell.KindNumber:
				sum += v.Num()
				count++
			case cell.KindBoolean:
				if v.Boolean() {
					sum++
				}
				count++
			case cell.KindText:
				if !arg.Range {
					num, ok := toNumber(v)
					if !ok {
						return cell.Error(cell.ErrorValue)
					}
					sum += num
				}
				count++
			case cell.KindEmpty:
				if !arg.Range {
					count++
				}
			}
		}
	}
	if count == 0 {
		return cell.Error(cell.ErrorDivZero)
	}
	return cell.NumberOrError(sum / float64(count))
}

func (b *Builtins) COUNT(args []Arg) cell.Value {
	count := 0
	for _, arg := range args {
		for _, v := range arg.Values {
			// errors are skipped, not propagated
			if v.Kind() == cell.KindNumber {
				count++
				continue
			}
			if !arg.Range && v.Kind() != cell.KindError {
				if _, ok := toNumber(v); ok && !v.IsEmpty() {
					count++
				}
			}
		}
	}
	return cell.Number(float64(count))
}

func (b *Builtins) COUNTA(args []Arg) cell.Value {
	count := 0
	for _, arg := range args {
		for _, v := range arg.Values {
			// errors count as non-empty
			if !v.IsEmpty() {
				count++
			}
		}
	}
	return cell.Number(float64(count))
}

func (b *Builtins) COUNTBLANK(args []Arg) cell.Value {
	count := 0
	for _, v := range args[0].Values {
		if v.IsEmpty() || (v.Kind() == cell.KindText && v.Str() == "") {
			count++
		}
	}
	return cell.Number(float64(count))
}

func (b *Builtins) MAX(args []Arg) cell.Value {
	nums, errv, failed := numbers(args)
	if failed {
		return errv
	}
	if len(nums) == 0 {
		return cell.Number(0)
	}
	return cell.Number(slices.Max(nums))
}

func (b *Builtins) MIN(args []Arg) cell.Value {
	nums, errv, failed := numbers(args)
	if failed {
		return errv
	}
	if len(nums) == 0 {
		return cell.Number(0)
	}
	return cell.Number(slices.Min(nums))
}

func (b *Builtins) MEDIAN(args []Arg) cell.Value {
	values, errv, failed := numbers(args)
	if failed {
		return errv
	}
	if len(values) == 0 {
		return cell.Error(cell.ErrorNum)
	}
	slices.Sort(values)

	mid := len(values) / 2
	if len(values)%2 == 0 {
		// even count: average of two middle values
		return cell.NumberOrError((values[mid-1] + values[mid]) / 2)
	}
	return cell.Number(values[mid])
}

func (b *Builtins) MODE(args []Arg) cell.Value {
	values, errv, failed := numbers(args)
	if failed {
		return errv
	}
	if len(values) == 0 {
		return cell.Error(cell.ErrorNum)
	}

	frequency := make(map[float64]int)
	maxFreq := 0
	for _, v := range values {
		frequency[v]++
		maxFreq = max(maxFreq, frequency[v])
	}
	if maxFreq == 1 {
		return cell.Error(cell.ErrorNA)
	}

	// smallest of the most frequent values, for deterministic ties
	var modes []float64
	for value, freq := range frequency {
		if freq == maxFreq {
			modes = append(modes, value)
		}
	}
	return cell.Number(slices.Min(modes))
}

// IF is the eager form used when conditionals are not short-circuited
func (b *Builtins) IF(args []Arg) cell.Value {
	cond := scalar(args[0])
	if cond.IsError() {
		return cond
	}
	truth, ok := toBool(cond)
	if !ok {
		return cell.Error(cell.ErrorValue)
	}
	if truth {
		return scalar(args[1])
	}
	if len(args) == 3 {
		return scalar(args[2])
	}
	return cell.Bool(false)
}

func (b *Builtins) IFERROR(args []Arg) cell.Value {
	if v := scalar(args[0]); !v.IsError() {
		return v
	}
	return scalar(args[1])
}

// logical folds AND/OR inputs. ranges skip text and empty cells, direct
// arguments must convert to booleans.
func logical(args []Arg, fold func(acc, v bool) bool, start bool) cell.Value {
	acc := start
	seen := false
	for _, arg := range args {
		for _, v := range arg.Values {
			if v.IsError() {
				return v
			}
			if arg.Range && (v.IsEmpty() || v.Kind() == cell.KindText) {
				continue
			}
			truth, ok := toBool(v)
			if !ok {
				return cell.Error(cell.ErrorValue)
			}
			acc = fold(acc, truth)
			seen = true
		}
	}
	if !seen {
		return cell.Error(cell.ErrorValue)
	}
	return cell.Bool(acc)
}

func (b *Builtins) AND(args []Arg) cell.Value {
	return logical(args, func(acc, v bool) bool { return acc && v }, true)
}

func (b *Builtins) OR(args []Arg) cell.Value {
	return logical(args, func(acc, v bool) bool { return acc || v }, false)
}

func (b *Builtins) NOT(args []Arg) cell.Value {
	v := scalar(args[0])
	if v.IsError() {
		return v
	}
	truth, ok := toBool(v)
	if !ok {
		return cell.Error(cell.ErrorValue)
	}
	return cell.Bool(!truth)
}

func (b *Builtins) ISBLANK(args []Arg) cell.Value {
	return cell.Bool(scalar(args[0]).IsEmpty())
}

func (b *Builtins) ISERROR(args []Arg) cell.Value {
	return cell.Bool(scalar(args[0]).IsError())
}

func (b *Builtins) ISNUMBER(args []Arg) cell.Value {
	return cell.Bool(scalar(args[0]).Kind() == cell.KindNumber)
}

func (b *Builtins) ISTEXT(args []Arg) cell.Value {
	return cell.Bool(scalar(args[0]).Kind() == cell.KindText)
}

func (b *Builtins) CONCATENATE(args []Arg) cell.Value {
	var result strings.Builder
	for _, arg := range args {
		for _, v := range arg.Values {
			if v.IsError() {
				return v
			}
			result.WriteString(toText(v))
		}
	}
	return cell.Text(result.String())
}

// LEN counts characters of the NFC form, so composed and decomposed input
// agree
func (b *Builtins) LEN(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	return cell.Number(float64(len([]rune(norm.NFC.String(s)))))
}

func (b *Builtins) UPPER(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	return cell.Text(cases.Upper(language.Und).String(s))
}

func (b *Builtins) LOWER(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	return cell.Text(cases.Lower(language.Und).String(s))
}

func (b *Builtins) PROPER(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	return cell.Text(cases.Title(language.Und).String(s))
}

// TRIM removes leading and trailing spaces and collapses inner runs
func (b *Builtins) TRIM(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	return cell.Text(strings.Join(strings.Fields(s), " "))
}

// charCount reads an optional non-negative character count argument
func charCount(args []Arg, i int) (int, cell.Value, bool) {
	if i >= len(args) {
		return 1, cell.Value{}, true
	}
	n, errv, ok := scalarNumber(args[i])
	if !ok {
		return 0, errv, false
	}
	if n < 0 {
		return 0, cell.Error(cell.ErrorValue), false
	}
	return int(min(n, math.MaxInt32)), cell.Value{}, true
}

func (b *Builtins) LEFT(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	n, errv, ok := charCount(args, 1)
	if !ok {
		return errv
	}
	runes := []rune(s)
	return cell.Text(string(runes[:min(n, len(runes))]))
}

func (b *Builtins) RIGHT(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	n, errv, ok := charCount(args, 1)
	if !ok {
		return errv
	}
	runes := []rune(s)
	return cell.Text(string(runes[len(runes)-min(n, len(runes)):]))
}

// MID(text, start, count) with a 1-based start
func (b *Builtins) MID(args []Arg) cell.Value {
	s, errv, ok := scalarText(args[0])
	if !ok {
		return errv
	}
	start, errv, ok := scalarNumber(args[1])
	if !ok {
		return errv
	}
	if start < 1 {
		return cell.Error(cell.ErrorValue)
	}
	n, errv, ok := charCount(args, 2)
	if !ok {
		return errv
	}
	runes := []rune(s)
	from := int(min(start-1, float64(len(runes))))
	to := min(from+n, len(runes))
	return cell.Text(string(runes[from:to]))
}

func (b *Builtins) ABS(args []Arg) cell.Value {
	num, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	return cell.Number(math.Abs(num))
}

func (b *Builtins) ROUND(args []Arg) cell.Value {
	num, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	places := 0.0
	if len(args) == 2 {
		places, errv, ok = scalarNumber(args[1])
		if !ok {
			return errv
		}
	}
	places = math.Trunc(places)
	if places < 0 {
		step := math.Pow(10, -places)
		return cell.NumberOrError(math.Round(num/step) * step)
	}
	multiplier := math.Pow(10, places)
	return cell.NumberOrError(math.Round(num*multiplier) / multiplier)
}

func (b *Builtins) FLOOR(args []Arg) cell.Value {
	num, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	return cell.Number(math.Floor(num))
}

func (b *Builtins) CEILING(args []Arg) cell.Value {
	num, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	return cell.Number(math.Ceil(num))
}

func (b *Builtins) SQRT(args []Arg) cell.Value {
	num, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	if num < 0 {
		return cell.Error(cell.ErrorNum)
	}
	return cell.Number(math.Sqrt(num))
}

func (b *Builtins) POWER(args []Arg) cell.Value {
	base, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	exp, errv, ok := scalarNumber(args[1])
	if !ok {
		return errv
	}
	return power(base, exp)
}

// MOD takes the sign of the divisor
func (b *Builtins) MOD(args []Arg) cell.Value {
	dividend, errv, ok := scalarNumber(args[0])
	if !ok {
		return errv
	}
	divisor, errv, ok := scalarNumber(args[1])
	if !ok {
		return errv
	}
	if divisor == 0 {
		return cell.Error(cell.ErrorDivZero)
	}
	return cell.NumberOrError(dividend - divisor*math.Floor(dividend/divisor))
}

func (b *Builtins) PI([]Arg) cell.Value {
	return cell.Number(math.Pi)
}

// serial dates count days since 1899-12-30
const (
	excelEpochMs = -2209161600000
	msPerDay     = 86400000
)

// NOW returns the current time as a serial date number
func (b *Builtins) NOW([]Arg) cell.Value {
	now := b.clock.Now()
	return cell.Number(float64(now.UnixMilli()-excelEpochMs) / msPerDay)
}

// TODAY returns the serial number of the current day's midnight
func (b *Builtins) TODAY([]Arg) cell.Value {
	now := b.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return cell.Number(math.Floor(float64(midnight.UnixMilli()-excelEpochMs) / msPerDay))
}

func (b *Builtins) RAND([]Arg) cell.Value {
	return cell.Number(b.rng.Float64())
}

// power rejects 0 raised to a negative power as division by zero, and
// other non-finite results as #NUM!
func power(base, exp float64) cell.Value {
	if base == 0 && exp < 0 {
		return cell.Error(cell.ErrorDivZero)
	}
	return cell.NumberOrError(math.Pow(base, exp))
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(v cell.Value) (float64, bool) {
	switch v.Kind() {
	case cell.KindNumber:
		return v.Num(), true
	case cell.KindBoolean:
		if v.Boolean() {
			return 1, true
		}
		return 0, true
	case cell.KindText:
		num, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
			return 0, false
		}
		return num, true
	case cell.KindEmpty:
		return 0, true
	default:
		return 0, false
	}
}

// toBool converts value to a boolean. text converts only when it spells
// TRUE or FALSE.
func toBool(v cell.Value) (bool, bool) {
	switch v.Kind() {
	case cell.KindBoolean:
		return v.Boolean(), true
	case cell.KindNumber:
		return v.Num() != 0, true
	case cell.KindEmpty:
		return false, true
	case cell.KindText:
		switch strings.ToUpper(strings.TrimSpace(v.Str())) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	return false, false
}

// toText converts value to its display text
func toText(v cell.Value) string {
	return v.String()
}
