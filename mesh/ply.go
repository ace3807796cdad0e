package mesh

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// PLY is the only mesh interchange format shipped with recogo. Both ascii
// and binary_little_endian variants are supported; big-endian files are not.

var (
	// ErrNotPLY is returned when the input does not start with a PLY magic line.
	ErrNotPLY = errors.New("ply: missing magic header")

	// ErrUnsupportedFormat is returned for PLY variants other than
	// "ascii 1.0" and "binary_little_endian 1.0".
	ErrUnsupportedFormat = errors.New("ply: unsupported format")
)

type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
)

type plyProperty struct {
	name      string
	typ       string
	list      bool
	countType string
	elemType  string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

// DecodePLY reads a mesh from a PLY stream. Vertex properties other than
// x/y/z and non-face elements are skipped.
func DecodePLY(r io.Reader) (Mesh, error) {
	br := bufio.NewReader(r)

	format, elements, err := decodePLYHeader(br)
	if err != nil {
		return Mesh{}, err
	}

	var m Mesh
	for _, el := range elements {
		switch el.name {
		case "vertex":
			m.Vertices, err = decodePLYVertices(br, format, el)
		case "face":
			m.Triangles, err = decodePLYFaces(br, format, el)
		default:
			err = skipPLYElement(br, format, el)
		}
		if err != nil {
			return Mesh{}, err
		}
	}

	if err := m.Validate(); err != nil {
		return Mesh{}, err
	}
	return m, nil
}

func decodePLYHeader(br *bufio.Reader) (plyFormat, []plyElement, error) {
	magic, err := readPLYLine(br)
	if err != nil {
		return 0, nil, fmt.Errorf("ply: reading header: %w", err)
	}
	if magic != "ply" {
		return 0, nil, ErrNotPLY
	}

	format := plyASCII
	formatSeen := false
	var elements []plyElement

	for {
		line, err := readPLYLine(br)
		if err != nil {
			return 0, nil, fmt.Errorf("ply: reading header: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "comment", "obj_info":
			// Ignored.
		case "format":
			if len(fields) != 3 {
				return 0, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
			switch fields[1] {
			case "ascii":
				format = plyASCII
			case "binary_little_endian":
				format = plyBinaryLE
			default:
				return 0, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fields[1])
			}
			formatSeen = true
		case "element":
			if len(fields) != 3 {
				return 0, nil, fmt.Errorf("ply: malformed element line %q", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return 0, nil, fmt.Errorf("ply: malformed element count %q", fields[2])
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(elements) == 0 {
				return 0, nil, fmt.Errorf("ply: property before element: %q", line)
			}
			prop, err := parsePLYProperty(fields)
			if err != nil {
				return 0, nil, err
			}
			el := &elements[len(elements)-1]
			el.props = append(el.props, prop)
		case "end_header":
			if !formatSeen {
				return 0, nil, fmt.Errorf("%w: missing format line", ErrUnsupportedFormat)
			}
			return format, elements, nil
		default:
			return 0, nil, fmt.Errorf("ply: unexpected header line %q", line)
		}
	}
}

func parsePLYProperty(fields []string) (plyProperty, error) {
	if fields[1] == "list" {
		if len(fields) != 5 {
			return plyProperty{}, fmt.Errorf("ply: malformed list property %q", strings.Join(fields, " "))
		}
		return plyProperty{
			name:      fields[4],
			list:      true,
			countType: fields[2],
			elemType:  fields[3],
		}, nil
	}
	if len(fields) != 3 {
		return plyProperty{}, fmt.Errorf("ply: malformed property %q", strings.Join(fields, " "))
	}
	return plyProperty{name: fields[2], typ: fields[1]}, nil
}

func decodePLYVertices(br *bufio.Reader, format plyFormat, el plyElement) ([]r3.Vector, error) {
	xi, yi, zi := -1, -1, -1
	for i, p := range el.props {
		switch p.name {
		case "x":
			xi = i
		case "y":
			yi = i
		case "z":
			zi = i
		}
	}
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("ply: vertex element missing x/y/z properties")
	}

	verts := make([]r3.Vector, el.count)
	vals := make([]float64, len(el.props))
	for i := range el.count {
		if err := readPLYRow(br, format, el.props, vals); err != nil {
			return nil, fmt.Errorf("ply: vertex %d: %w", i, err)
		}
		verts[i] = r3.Vector{X: vals[xi], Y: vals[yi], Z: vals[zi]}
	}
	return verts, nil
}

func decodePLYFaces(br *bufio.Reader, format plyFormat, el plyElement) ([][3]int32, error) {
	li := -1
	for i, p := range el.props {
		if p.list && (p.name == "vertex_indices" || p.name == "vertex_index") {
			li = i
		}
	}
	if li < 0 {
		return nil, fmt.Errorf("ply: face element missing vertex index list")
	}

	var tris [][3]int32
	for i := range el.count {
		idxs, err := readPLYFaceRow(br, format, el.props, li)
		if err != nil {
			return nil, fmt.Errorf("ply: face %d: %w", i, err)
		}
		if len(idxs) < 3 {
			return nil, fmt.Errorf("ply: face %d has %d vertices", i, len(idxs))
		}
		// Fan triangulation for quads and larger polygons.
		for k := 1; k+1 < len(idxs); k++ {
			tris = append(tris, [3]int32{idxs[0], idxs[k], idxs[k+1]})
		}
	}
	return tris, nil
}

func skipPLYElement(br *bufio.Reader, format plyFormat, el plyElement) error {
	vals := make([]float64, len(el.props))
	for i := range el.count {
		if err := readPLYRow(br, format, el.props, vals); err != nil {
			return fmt.Errorf("ply: %s %d: %w", el.name, i, err)
		}
	}
	return nil
}

// readPLYRow reads one row of scalar properties into vals. List properties
// are consumed and their elements discarded (vals gets the element count).
func readPLYRow(br *bufio.Reader, format plyFormat, props []plyProperty, vals []float64) error {
	if format == plyASCII {
		fields, err := readPLYASCIIRow(br)
		if err != nil {
			return err
		}
		fi := 0
		for i, p := range props {
			if p.list {
				if fi >= len(fields) {
					return io.ErrUnexpectedEOF
				}
				n, err := strconv.Atoi(fields[fi])
				if err != nil {
					return fmt.Errorf("bad list count %q", fields[fi])
				}
				fi += 1 + n
				vals[i] = float64(n)
				continue
			}
			if fi >= len(fields) {
				return io.ErrUnexpectedEOF
			}
			v, err := strconv.ParseFloat(fields[fi], 64)
			if err != nil {
				return fmt.Errorf("bad value %q", fields[fi])
			}
			vals[i] = v
			fi++
		}
		return nil
	}

	for i, p := range props {
		if p.list {
			n, err := readPLYBinaryScalar(br, p.countType)
			if err != nil {
				return err
			}
			for range int(n) {
				if _, err := readPLYBinaryScalar(br, p.elemType); err != nil {
					return err
				}
			}
			vals[i] = n
			continue
		}
		v, err := readPLYBinaryScalar(br, p.typ)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return nil
}

func readPLYFaceRow(br *bufio.Reader, format plyFormat, props []plyProperty, li int) ([]int32, error) {
	if format == plyASCII {
		fields, err := readPLYASCIIRow(br)
		if err != nil {
			return nil, err
		}
		fi := 0
		var out []int32
		for i, p := range props {
			if p.list {
				if fi >= len(fields) {
					return nil, io.ErrUnexpectedEOF
				}
				n, err := strconv.Atoi(fields[fi])
				if err != nil {
					return nil, fmt.Errorf("bad list count %q", fields[fi])
				}
				fi++
				if fi+n > len(fields) {
					return nil, io.ErrUnexpectedEOF
				}
				if i == li {
					out = make([]int32, n)
					for k := range n {
						idx, err := strconv.Atoi(fields[fi+k])
						if err != nil {
							return nil, fmt.Errorf("bad index %q", fields[fi+k])
						}
						out[k] = int32(idx)
					}
				}
				fi += n
				continue
			}
			fi++
		}
		return out, nil
	}

	var out []int32
	for i, p := range props {
		if p.list {
			n, err := readPLYBinaryScalar(br, p.countType)
			if err != nil {
				return nil, err
			}
			keep := i == li
			if keep {
				out = make([]int32, 0, int(n))
			}
			for range int(n) {
				v, err := readPLYBinaryScalar(br, p.elemType)
				if err != nil {
					return nil, err
				}
				if keep {
					out = append(out, int32(v))
				}
			}
			continue
		}
		if _, err := readPLYBinaryScalar(br, p.typ); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readPLYASCIIRow(br *bufio.Reader) ([]string, error) {
	for {
		line, err := readPLYLine(br)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields, nil
		}
	}
}

func readPLYLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readPLYBinaryScalar(br *bufio.Reader, typ string) (float64, error) {
	var buf [8]byte
	size, ok := plyTypeSize(typ)
	if !ok {
		return 0, fmt.Errorf("%w: property type %q", ErrUnsupportedFormat, typ)
	}
	if _, err := io.ReadFull(br, buf[:size]); err != nil {
		return 0, err
	}

	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf[:2]))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf[:2])), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf[:4]))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf[:4])), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:4]))), nil
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])), nil
	}
	return 0, fmt.Errorf("%w: property type %q", ErrUnsupportedFormat, typ)
}

func plyTypeSize(typ string) (int, bool) {
	switch typ {
	case "char", "int8", "uchar", "uint8":
		return 1, true
	case "short", "int16", "ushort", "uint16":
		return 2, true
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4, true
	case "double", "float64":
		return 8, true
	}
	return 0, false
}

// EncodePLYOptions contains configuration options for EncodePLY.
type EncodePLYOptions struct {
	// Binary selects the binary_little_endian variant instead of ascii.
	Binary bool
}

// EncodePLY writes the mesh as a PLY stream.
func EncodePLY(w io.Writer, m Mesh, optFns ...func(o *EncodePLYOptions)) error {
	if err := m.Validate(); err != nil {
		return err
	}

	var opts EncodePLYOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	bw := bufio.NewWriter(w)

	formatLine := "format ascii 1.0"
	if opts.Binary {
		formatLine = "format binary_little_endian 1.0"
	}
	fmt.Fprintf(bw, "ply\n%s\n", formatLine)
	fmt.Fprintf(bw, "element vertex %d\n", len(m.Vertices))
	fmt.Fprint(bw, "property double x\nproperty double y\nproperty double z\n")
	fmt.Fprintf(bw, "element face %d\n", len(m.Triangles))
	fmt.Fprint(bw, "property list uchar int vertex_indices\nend_header\n")

	if opts.Binary {
		var buf [8]byte
		for _, v := range m.Vertices {
			for _, f := range []float64{v.X, v.Y, v.Z} {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
				if _, err := bw.Write(buf[:]); err != nil {
					return err
				}
			}
		}
		for _, t := range m.Triangles {
			if err := bw.WriteByte(3); err != nil {
				return err
			}
			for _, idx := range t {
				binary.LittleEndian.PutUint32(buf[:4], uint32(idx))
				if _, err := bw.Write(buf[:4]); err != nil {
					return err
				}
			}
		}
		return bw.Flush()
	}

	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "%g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, t := range m.Triangles {
		fmt.Fprintf(bw, "3 %d %d %d\n", t[0], t[1], t[2])
	}
	return bw.Flush()
}
