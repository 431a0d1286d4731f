package invoice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/uzair166/invoiceprocessor/internal/invoice"
	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

// stubConverter stands in for the PDF library
type stubConverter struct {
	text string
}

func (c *stubConverter) Convert(data []byte) (string, error) {
	return c.text, nil
}

// stubExtractor returns a canned model response
type stubExtractor struct {
	response string
}

func (e *stubExtractor) Extract(ctx context.Context, text string, mode scanning.Mode) (string, error) {
	return e.response, nil
}

func (e *stubExtractor) Close() error {
	return nil
}

var _ = Describe("Integration", func() {
	var (
		db       *invoice.BoltDB
		ghServer *ghttp.Server
	)

	BeforeEach(func() {
		var err error
		db, err = invoice.NewBoltDB(filepath.Join(GinkgoT().TempDir(), "invoices.db"))
		Expect(err).NotTo(HaveOccurred())

		text := scanning.NewTextExtractor(&stubConverter{text: "Invoice #A-100, Total: $1,200.00, Due 2024-03-01"}, nil)
		extractor := &stubExtractor{response: "```json\n" + `{"invoiceNumber": "A-100", "totalAmount": "$1,200.00", "dueDate": "2024-03-01"}` + "\n```"}
		service := invoice.NewService(db, text, extractor, nil)
		server := invoice.NewServer(service, invoice.ServerConfig{Production: true}, nil)

		ghServer = ghttp.NewServer()
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			ghServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	listIDs := func() []string {
		resp, err := http.Get(ghServer.URL() + "/api/invoices")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var records []map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&records)).To(Succeed())
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r["id"].(string))
		}
		return ids
	}

	deleteInvoice := func(id string) int {
		req, err := http.NewRequest(http.MethodDelete, ghServer.URL()+"/api/invoices?id="+id, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp.StatusCode
	}

	It("uploads, lists and deletes an invoice", func() {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="a-100.pdf"`)
		h.Set("Content-Type", "application/pdf")
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 invoice"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/extract", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK), string(data))

		var saved map[string]any
		Expect(json.Unmarshal(data, &saved)).To(Succeed())
		Expect(saved).To(HaveKeyWithValue("invoiceNumber", "A-100"))
		Expect(saved).To(HaveKeyWithValue("totalAmount", 1200.0))
		Expect(saved).To(HaveKeyWithValue("dueDate", "2024-03-01"))
		Expect(saved).To(HaveKeyWithValue("invoiceDate", BeNil()))
		Expect(saved).To(HaveKeyWithValue("items", BeEmpty()))
		Expect(saved).To(HaveKeyWithValue("sourceFileName", "a-100.pdf"))
		id := saved["id"].(string)

		Expect(listIDs()).To(Equal([]string{id}))

		Expect(deleteInvoice("does-not-exist")).To(Equal(http.StatusNotFound))
		Expect(listIDs()).To(Equal([]string{id}))

		Expect(deleteInvoice(id)).To(Equal(http.StatusOK))
		Expect(listIDs()).To(BeEmpty())
	})
})
