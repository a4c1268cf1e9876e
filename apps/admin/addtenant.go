package main

import (
	"github.com/trezcool/darasa/core/tenant"
)

func (cli *commandLine) addTenant(name, slug, plan string) error {
	nt := tenant.NewTenant{Name: name, Slug: slug, Plan: plan}
	if err := nt.Validate(cli.tenantSvc); err != nil {
		return err
	}
	_, err := cli.tenantSvc.Create(nt)
	return err
}
