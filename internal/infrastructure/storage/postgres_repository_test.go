package storage

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ContractFinder/internal/domain"
)

var _ = Describe("Postgres queries", func() {
	Describe("upsertQuery", func() {
		var (
			query string
			args  []any
		)

		BeforeEach(func() {
			var err error
			query, args, err = upsertQuery(award("KY", "101", 18))
			Expect(err).NotTo(HaveOccurred())
		})

		It("inserts with dollar placeholders", func() {
			Expect(query).To(HavePrefix("INSERT INTO contract_awards"))
			Expect(query).To(ContainSubstring("$12"))
			Expect(args).To(HaveLen(12))
		})

		It("conflicts on the natural key", func() {
			Expect(query).To(ContainSubstring("ON CONFLICT (state, contract_id) DO UPDATE"))
		})

		It("never overwrites status or created_at", func() {
			set := query[strings.Index(query, "DO UPDATE SET"):strings.Index(query, "RETURNING")]
			Expect(set).NotTo(ContainSubstring("status"))
			Expect(set).NotTo(ContainSubstring("created_at"))
			Expect(set).To(ContainSubstring("score = EXCLUDED.score"))
		})

		It("returns the stored id, status and creation time", func() {
			Expect(query).To(HaveSuffix("RETURNING id, status, created_at"))
		})
	})

	Describe("listQuery", func() {
		It("selects everything ordered by score", func() {
			query, args, err := listQuery(domain.LeadFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(query).NotTo(ContainSubstring("WHERE"))
			Expect(query).To(HaveSuffix("ORDER BY score DESC, id ASC"))
			Expect(args).To(BeEmpty())
		})

		It("adds every set criterion", func() {
			minScore := 10
			query, args, err := listQuery(domain.LeadFilter{State: "ky", Status: domain.StatusNew, MinScore: &minScore})
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("state = $1"))
			Expect(query).To(ContainSubstring("status = $2"))
			Expect(query).To(ContainSubstring("score >= $3"))
			Expect(args).To(Equal([]any{"KY", "new", 10}))
		})
	})

	Describe("updateStatusQuery", func() {
		It("only sets status and returns the full row", func() {
			query, args, err := updateStatusQuery(7, domain.StatusConverted)
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(HavePrefix("UPDATE contract_awards SET status = $1 WHERE id = $2"))
			Expect(query).To(ContainSubstring("RETURNING id, state, letting_date"))
			Expect(args).To(Equal([]any{"converted", int64(7)}))
		})
	})

	Describe("findByKeyQuery", func() {
		It("looks up state and contract id", func() {
			query, args, err := findByKeyQuery(domain.ContractKey{State: "IN", ContractID: "R-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("contract_id = $1 AND state = $2"))
			Expect(args).To(Equal([]any{"R-1", "IN"}))
		})
	})
})
