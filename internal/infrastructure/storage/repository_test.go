package storage

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
)

var _ = Describe("BoltRepository", func() {
	var repo *BoltRepository

	BeforeEach(func() {
		var err error
		repo, err = NewBoltRepository(filepath.Join(GinkgoT().TempDir(), "contracts.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if repo != nil {
			repo.Close()
		}
	})

	repositoryBehaviors(func() ports.ContractRepository { return repo })

	It("keeps records across reopen", func() {
		path := filepath.Join(GinkgoT().TempDir(), "reopen.db")
		first, err := NewBoltRepository(path)
		Expect(err).NotTo(HaveOccurred())
		upsertAll(first, award("KY", "101", 18))
		Expect(first.Close()).To(Succeed())

		second, err := NewBoltRepository(path)
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()

		leads, err := second.List(context.Background(), domain.LeadFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(leads).To(HaveLen(1))
		Expect(leads[0].LettingDate.String()).To(Equal("2025-11-20"))
	})
})

var _ = Describe("MemoryRepository", func() {
	var repo *MemoryRepository

	BeforeEach(func() {
		repo = NewMemoryRepository()
	})

	repositoryBehaviors(func() ports.ContractRepository { return repo })

	When("two units of work insert the same key", func() {
		It("keeps one lead with the first id and its status", func() {
			ctx := context.Background()
			first, err := repo.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := repo.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())

			a, err := first.Upsert(ctx, award("KY", "1001", 10))
			Expect(err).NotTo(HaveOccurred())
			_, err = second.Upsert(ctx, award("KY", "1001", 12))
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Commit()).To(Succeed())
			_, err = repo.UpdateStatus(ctx, a.ID, domain.StatusContacted)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Commit()).To(Succeed())

			leads, err := repo.List(ctx, domain.LeadFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(1))
			Expect(leads[0].ID).To(Equal(a.ID))
			Expect(leads[0].Score).To(Equal(12))
			Expect(leads[0].Status).To(Equal(domain.StatusContacted))
		})
	})

	It("defaults an empty status to new", func() {
		bare := award("KY", "1002", 5)
		bare.Status = ""
		upsertAll(repo, bare)

		leads, err := repo.List(context.Background(), domain.LeadFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(leads).To(HaveLen(1))
		Expect(leads[0].Status).To(Equal(domain.StatusNew))
	})
})

func repositoryBehaviors(current func() ports.ContractRepository) {
	var (
		ctx  context.Context
		repo ports.ContractRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = current()
	})

	Describe("Upsert", func() {
		When("the key is new", func() {
			It("assigns an id and the default status", func() {
				saved := upsertAll(repo, award("KY", "101", 18))
				Expect(saved[0].ID).NotTo(BeZero())
				Expect(saved[0].Status).To(Equal(domain.StatusNew))

				found, err := repo.Get(ctx, saved[0].ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(found.ContractID).To(Equal("101"))
			})
		})

		When("the key already exists", func() {
			var original domain.ContractAward

			BeforeEach(func() {
				original = upsertAll(repo, award("KY", "101", 18))[0]
				_, err := repo.UpdateStatus(ctx, original.ID, domain.StatusContacted)
				Expect(err).NotTo(HaveOccurred())
			})

			It("overwrites mutable fields and keeps id and status", func() {
				changed := award("KY", "101", 43)
				changed.Description = "Dump truck hauling and excavation"
				changed.AwardedTo = "New Owner LLC"

				saved := upsertAll(repo, changed)[0]
				Expect(saved.ID).To(Equal(original.ID))
				Expect(saved.Status).To(Equal(domain.StatusContacted))

				found, err := repo.Get(ctx, original.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(found.Score).To(Equal(43))
				Expect(found.AwardedTo).To(Equal("New Owner LLC"))
				Expect(found.Status).To(Equal(domain.StatusContacted))

				leads, err := repo.List(ctx, domain.LeadFilter{})
				Expect(err).NotTo(HaveOccurred())
				Expect(leads).To(HaveLen(1))
			})
		})

		It("treats the same contract id in two states as two leads", func() {
			upsertAll(repo, award("KY", "101", 5), award("IN", "101", 5))
			leads, err := repo.List(ctx, domain.LeadFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(2))
		})

		It("sees its own writes before commit", func() {
			uow, err := repo.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = uow.Upsert(ctx, award("KY", "101", 5))
			Expect(err).NotTo(HaveOccurred())

			_, found, err := uow.FindByKey(ctx, domain.ContractKey{State: "KY", ContractID: "101"})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(uow.Commit()).To(Succeed())
		})

		It("discards writes on rollback", func() {
			uow, err := repo.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = uow.Upsert(ctx, award("KY", "101", 5))
			Expect(err).NotTo(HaveOccurred())
			Expect(uow.Rollback()).To(Succeed())

			leads, err := repo.List(ctx, domain.LeadFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(BeEmpty())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			saved := upsertAll(repo,
				award("KY", "101", 18),
				award("KY", "102", 43),
				award("IN", "201", 0),
			)
			_, err := repo.UpdateStatus(ctx, saved[2].ID, domain.StatusIgnored)
			Expect(err).NotTo(HaveOccurred())
		})

		It("orders by score descending", func() {
			leads, err := repo.List(ctx, domain.LeadFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(3))
			Expect(leads[0].ContractID).To(Equal("102"))
			Expect(leads[2].ContractID).To(Equal("201"))
		})

		It("filters by state case-insensitively", func() {
			leads, err := repo.List(ctx, domain.LeadFilter{State: "ky"})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(2))
		})

		It("filters by status and minimum score", func() {
			minScore := 20
			leads, err := repo.List(ctx, domain.LeadFilter{Status: domain.StatusNew, MinScore: &minScore})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(1))
			Expect(leads[0].ContractID).To(Equal("102"))

			leads, err = repo.List(ctx, domain.LeadFilter{Status: domain.StatusIgnored})
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(1))
			Expect(leads[0].State).To(Equal("IN"))
		})
	})

	Describe("UpdateStatus", func() {
		It("returns ErrNotFound for unknown ids", func() {
			_, err := repo.UpdateStatus(ctx, 999, domain.StatusContacted)
			Expect(err).To(MatchError(domain.ErrNotFound))
		})
	})

	Describe("Get", func() {
		It("returns ErrNotFound for unknown ids", func() {
			_, err := repo.Get(ctx, 999)
			Expect(err).To(MatchError(domain.ErrNotFound))
		})
	})

	It("answers Ping", func() {
		Expect(repo.Ping(ctx)).To(Succeed())
	})
}

func award(state, contractID string, score int) domain.ContractAward {
	now := time.Date(2025, 11, 21, 12, 0, 0, 0, time.UTC)
	return domain.NewContractAward(domain.NormalizedContract{
		State:       state,
		LettingDate: domain.ParseLettingDate("11/20/2025"),
		ContractID:  contractID,
		AwardedTo:   "Acme Co",
		Description: "Dump truck hauling",
		SourceURL:   "https://example.org/letting",
	}, score, nil, now)
}

func upsertAll(repo ports.ContractRepository, awards ...domain.ContractAward) []domain.ContractAward {
	ctx := context.Background()
	uow, err := repo.Begin(ctx)
	Expect(err).NotTo(HaveOccurred())

	saved := make([]domain.ContractAward, 0, len(awards))
	for _, a := range awards {
		s, err := uow.Upsert(ctx, a)
		Expect(err).NotTo(HaveOccurred())
		saved = append(saved, s)
	}
	Expect(uow.Commit()).To(Succeed())
	return saved
}
