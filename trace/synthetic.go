package trace

// Base program counter for synthetic loops. Each generated instruction gets
// its own PC at a 4-byte offset from it.
const basePC = 0x400000

// Stream walks count elements of elemBytes sequentially from base with a
// single load instruction.
func Stream(base uint64, count int, elemBytes uint64) []Record {
	return Strided(base, count, elemBytes)
}

// Strided loads count addresses spaced stride bytes apart.
func Strided(base uint64, count int, stride uint64) []Record {
	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, Record{
			Op:    Load,
			Addr:  base + uint64(i)*stride,
			PC:    basePC,
			HasPC: true,
		})
	}
	return records
}

// PointerChase follows a linked list of nodes laid out in a deterministic
// shuffled order, iterations times.
func PointerChase(base uint64, nodes int, nodeBytes uint64, iterations int) []Record {
	if nodes <= 0 {
		return nil
	}

	order := make([]int, nodes)
	for i := range order {
		order[i] = i
	}
	for i := nodes - 1; i > 0; i-- {
		j := (i*7919 + 1337) % (i + 1)
		order[i], order[j] = order[j], order[i]
	}

	records := make([]Record, 0, nodes*iterations)
	for it := 0; it < iterations; it++ {
		for _, n := range order {
			records = append(records, Record{
				Op:    Load,
				Addr:  base + uint64(n)*nodeBytes,
				PC:    basePC + 0x10,
				HasPC: true,
			})
		}
	}
	return records
}

// MatrixMultiply computes C += A * B over n x n row-major matrices placed
// back to back from base. A is walked along rows and B along columns.
func MatrixMultiply(base uint64, n int, elemBytes uint64) []Record {
	size := uint64(n*n) * elemBytes
	a, b, c := base, base+size, base+2*size

	records := make([]Record, 0, 2*n*n*n+2*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cij := c + uint64(i*n+j)*elemBytes
			records = append(records, Record{Op: Load, Addr: cij, PC: basePC + 0x20, HasPC: true})
			for k := 0; k < n; k++ {
				records = append(records,
					Record{Op: Load, Addr: a + uint64(i*n+k)*elemBytes, PC: basePC + 0x24, HasPC: true},
					Record{Op: Load, Addr: b + uint64(k*n+j)*elemBytes, PC: basePC + 0x28, HasPC: true},
				)
			}
			records = append(records, Record{Op: Store, Addr: cij, PC: basePC + 0x2c, HasPC: true})
		}
	}
	return records
}

// VectorAdd computes c[i] = a[i] + b[i] over three adjacent arrays of n
// elements. Each array is touched by its own instruction.
func VectorAdd(base uint64, n int, elemBytes uint64) []Record {
	size := uint64(n) * elemBytes
	a, b, c := base, base+size, base+2*size

	records := make([]Record, 0, 3*n)
	for i := 0; i < n; i++ {
		off := uint64(i) * elemBytes
		records = append(records,
			Record{Op: Load, Addr: a + off, PC: basePC + 0x30, HasPC: true},
			Record{Op: Load, Addr: b + off, PC: basePC + 0x34, HasPC: true},
			Record{Op: Store, Addr: c + off, PC: basePC + 0x38, HasPC: true},
		)
	}
	return records
}

// BinarySearch runs searches lookups over a sorted array of n elements
// holding 0, 2, 4, ... Targets cycle through odd and even values, so about
// half of the lookups miss. Every probe is a load by one instruction.
func BinarySearch(base uint64, n int, elemBytes uint64, searches int) []Record {
	var records []Record
	for i := 0; i < searches; i++ {
		target := (i*13 + 7) % (2 * n)

		left, right := 0, n-1
		for left <= right {
			mid := left + (right-left)/2
			records = append(records, Record{
				Op:    Load,
				Addr:  base + uint64(mid)*elemBytes,
				PC:    basePC + 0x40,
				HasPC: true,
			})

			value := 2 * mid
			if value == target {
				break
			}
			if value < target {
				left = mid + 1
			} else {
				right = mid - 1
			}
		}
	}
	return records
}
