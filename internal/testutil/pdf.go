package testutil

import (
	"bytes"
	"fmt"
)

// MinimalPDF возвращает корректный PDF из pages пустых страниц
// (таблица xref со вычисленными смещениями).
func MinimalPDF(pages int) []byte {
	if pages < 1 {
		pages = 1
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	// 1 - каталог, 2 - дерево страниц, 3.. - страницы
	total := 2 + pages
	offsets := make([]int, total+1)

	kids := make([]byte, 0, pages*8)
	for i := range pages {
		kids = fmt.Appendf(kids, "%d 0 R ", 3+i)
	}

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	fmt.Fprintf(&buf, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", bytes.TrimSpace(kids), pages)

	for i := range pages {
		n := 3 + i
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", n)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total+1)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= total; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)

	return buf.Bytes()
}
