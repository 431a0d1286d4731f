package invoice

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

var _ = Describe("Service", func() {
	var (
		db        *mockDB
		text      *mockTextExtractor
		extractor *mockExtractor
		now       time.Time
		service   *Service
		ctx       context.Context
	)

	BeforeEach(func() {
		db = newMockDB()
		text = newMockTextExtractor()
		extractor = newMockExtractor()
		now = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, text, extractor, &sequenceIDGenerator{}, &fixedTimeSource{now: now}, discardLogger)
	})

	Describe("ProcessInvoice", func() {
		var (
			upload *Upload
			mode   scanning.Mode
			result *Result
			err    error
		)

		BeforeEach(func() {
			upload = pdfUpload()
			mode = scanning.ModeSingle
		})

		JustBeforeEach(func() {
			result, err = service.ProcessInvoice(ctx, upload, mode)
		})

		When("the document is a single invoice", func() {
			It("saves the normalized invoice", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invoices).To(HaveLen(1))

				record := result.Invoices[0]
				Expect(record.ID).To(Equal("inv-1"))
				Expect(record.CreatedAt).To(Equal(now))
				Expect(record.LastUpdated).To(Equal(now))
				Expect(record.SourceFileName).To(Equal("invoice.pdf"))
				Expect(record.Single.InvoiceNumber).To(Equal(strPtr("A-100")))
				Expect(record.Single.TotalAmount).To(Equal(floatPtr(1200)))
				Expect(record.Single.DueDate.String()).To(Equal("2024-03-01"))
				Expect(record.Single.InvoiceDate).To(BeNil())
				Expect(db.invoices).To(HaveKey("inv-1"))
			})

			It("passes the document text and mode to the extractor", func() {
				Expect(extractor.lastText).To(ContainSubstring("A-100"))
				Expect(extractor.lastMode).To(Equal(scanning.ModeSingle))
			})
		})

		When("the generated ID is already stored", func() {
			var existing *Record

			BeforeEach(func() {
				existing = testRecord("inv-1", now.Add(-time.Hour))
				db.invoices["inv-1"] = existing
			})

			It("fails with a persistence error and keeps the stored record", func() {
				Expect(apperr.KindOf(err)).To(Equal(apperr.PersistenceError))
				Expect(errors.Is(err, ErrExists)).To(BeTrue())
				Expect(db.invoices["inv-1"]).To(BeIdenticalTo(existing))
			})
		})

		When("the upload is invalid", func() {
			BeforeEach(func() {
				upload.ContentType = "image/jpeg"
			})

			It("fails before extracting anything", func() {
				Expect(apperr.KindOf(err)).To(Equal(apperr.InvalidInput))
				Expect(text.calls).To(Equal(0))
				Expect(extractor.calls).To(Equal(0))
			})
		})

		When("the document has no text", func() {
			BeforeEach(func() {
				text.err = apperr.New(apperr.EmptyDocument, errors.New("3 characters"))
			})

			It("does not call the model", func() {
				Expect(apperr.KindOf(err)).To(Equal(apperr.EmptyDocument))
				Expect(extractor.calls).To(Equal(0))
				Expect(db.saves).To(Equal(0))
			})
		})

		When("the model is unavailable", func() {
			BeforeEach(func() {
				extractor.err = apperr.New(apperr.ModelUnavailable, errors.New("429"))
			})

			It("fails without saving or retrying", func() {
				Expect(apperr.KindOf(err)).To(Equal(apperr.ModelUnavailable))
				Expect(extractor.calls).To(Equal(1))
				Expect(db.saves).To(Equal(0))
			})
		})

		When("the model response is not JSON", func() {
			BeforeEach(func() {
				extractor.response = "Sorry, I cannot help with that."
			})

			It("fails with MalformedModelResponse and saves nothing", func() {
				Expect(apperr.KindOf(err)).To(Equal(apperr.MalformedModelResponse))
				Expect(db.saves).To(Equal(0))
			})
		})

		When("the save fails", func() {
			BeforeEach(func() {
				db.saveErr = errDiskFull
			})

			It("reports a persistence error", func() {
				Expect(apperr.KindOf(err)).To(Equal(apperr.PersistenceError))
				Expect(errors.Is(err, errDiskFull)).To(BeTrue())
				Expect(result).To(BeNil())
			})
		})

		When("the deadline passes while the model is working", func() {
			BeforeEach(func() {
				extractor.block = true
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 10*time.Millisecond)
				DeferCleanup(cancel)
			})

			It("returns without saving", func() {
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
				Expect(db.saves).To(Equal(0))
			})
		})

		When("the document holds several invoices", func() {
			BeforeEach(func() {
				mode = scanning.ModeMulti
				extractor.response = `{"invoices": [
					{"invoiceNumber": "1", "netTotal": "10.00"},
					{"invoiceNumber": "2", "netTotal": "20.00"},
					{"invoiceNumber": "3", "netTotal": "30.00"}
				]}`
			})

			It("saves each invoice in model order", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Failed).To(Equal(0))
				Expect(result.Partial()).To(BeFalse())
				Expect(result.Invoices).To(HaveLen(3))
				for i, number := range []string{"1", "2", "3"} {
					Expect(result.Invoices[i].Multi.InvoiceNumber).To(Equal(strPtr(number)))
				}
				Expect(db.invoices).To(HaveLen(3))
			})

			Context("and one save fails", func() {
				BeforeEach(func() {
					db.failSave["2"] = errDiskFull
				})

				It("keeps the other invoices and reports the failure", func() {
					Expect(err).NotTo(HaveOccurred())
					Expect(result.Invoices).To(HaveLen(2))
					Expect(result.Failed).To(Equal(1))
					Expect(result.Partial()).To(BeTrue())
					Expect(apperr.KindOf(result.Err)).To(Equal(apperr.PersistenceError))
					Expect(db.savedNumbers()).To(ConsistOf("1", "3"))
					Expect(result.Invoices[0].Multi.InvoiceNumber).To(Equal(strPtr("1")))
					Expect(result.Invoices[1].Multi.InvoiceNumber).To(Equal(strPtr("3")))
				})
			})

			Context("and every save fails", func() {
				BeforeEach(func() {
					db.saveErr = errDiskFull
				})

				It("returns a persistence error", func() {
					Expect(apperr.KindOf(err)).To(Equal(apperr.PersistenceError))
					Expect(result.Failed).To(Equal(3))
					Expect(result.Invoices).To(BeEmpty())
				})
			})

			Context("and the model found none", func() {
				BeforeEach(func() {
					extractor.response = `{"invoices": []}`
				})

				It("succeeds with nothing saved", func() {
					Expect(err).NotTo(HaveOccurred())
					Expect(result.Invoices).To(BeEmpty())
					Expect(db.saves).To(Equal(0))
				})
			})
		})
	})

	Describe("ListInvoices", func() {
		When("the store fails", func() {
			BeforeEach(func() {
				db.listErr = errDiskFull
			})

			It("reports a persistence error", func() {
				_, err := service.ListInvoices(ctx)
				Expect(apperr.KindOf(err)).To(Equal(apperr.PersistenceError))
			})
		})

		It("returns stored invoices newest first", func() {
			db.invoices["old"] = testRecord("old", now.Add(-time.Hour))
			db.invoices["new"] = testRecord("new", now)

			records, err := service.ListInvoices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ID).To(Equal("new"))
		})
	})

	Describe("DeleteInvoice", func() {
		It("requires an ID", func() {
			err := service.DeleteInvoice(ctx, "")
			Expect(apperr.KindOf(err)).To(Equal(apperr.InvalidInput))
		})

		It("reports NotFound for an unknown ID", func() {
			err := service.DeleteInvoice(ctx, "missing")
			Expect(apperr.KindOf(err)).To(Equal(apperr.NotFound))
		})

		It("removes a stored invoice", func() {
			db.invoices["a"] = testRecord("a", now)
			Expect(service.DeleteInvoice(ctx, "a")).To(Succeed())
			Expect(db.invoices).NotTo(HaveKey("a"))
		})

		It("reports a persistence error when the store fails", func() {
			db.deleteErr = errDiskFull
			err := service.DeleteInvoice(ctx, "a")
			Expect(apperr.KindOf(err)).To(Equal(apperr.PersistenceError))
		})
	})
})
